package config

import (
	"os"
	"os/user"

	"github.com/OpenPeeDeeP/xdg"
)

// AppConfig contains the invocation-wide application settings
type AppConfig struct {
	Debug       bool   `long:"debug" env:"DEBUG"`
	Version     string `long:"version" env:"VERSION"`
	Commit      string `long:"commit" env:"COMMIT"`
	BuildDate   string `long:"build-date" env:"BUILD_DATE"`
	Name        string `long:"name" env:"NAME"`
	BuildSource string `long:"build-source" env:"BUILD_SOURCE"`
	SupfilePath string
	ConfigDir   string
	UserName    string
}

// NewAppConfig makes a new app config
func NewAppConfig(name, version, commit, date string, buildSource string, debuggingFlag bool, supfilePath string) (*AppConfig, error) {
	configDir, err := findOrCreateConfigDir(name)
	if err != nil {
		return nil, err
	}

	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Name:        name,
		Version:     version,
		Commit:      commit,
		BuildDate:   date,
		Debug:       debuggingFlag || os.Getenv("DEBUG") == "TRUE",
		BuildSource: buildSource,
		SupfilePath: supfilePath,
		ConfigDir:   configDir,
		UserName:    currentUser.Username,
	}

	return appConfig, nil
}

func configDir(projectName string) string {
	envConfigDir := os.Getenv("CONFIG_DIR")
	if envConfigDir != "" {
		return envConfigDir
	}
	configDirs := xdg.New("", projectName)
	return configDirs.ConfigHome()
}

func findOrCreateConfigDir(projectName string) (string, error) {
	folder := configDir(projectName)

	err := os.MkdirAll(folder, 0o755)
	if err != nil {
		return "", err
	}

	return folder, nil
}
