package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/AlexMikhalev/stackup/pkg/app"
	"github.com/AlexMikhalev/stackup/pkg/commands"
	"github.com/AlexMikhalev/stackup/pkg/config"
	"github.com/AlexMikhalev/stackup/pkg/utils"
	"github.com/fatih/color"
	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/jesseduffield/yaml"
	"github.com/samber/lo"
)

const DEFAULT_VERSION = "unversioned"

var (
	commit      string
	version     = DEFAULT_VERSION
	date        string
	buildSource = "unknown"

	supfileFlag       = "./Supfile"
	debuggingFlag     = false
	printConfigFlag   = false
	disablePrefixFlag = false
	onlyFlag          = ""
	exceptFlag        = ""
	envFlags          []string
	networkArg        = ""
	commandArg        = ""
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version,
		date,
		buildSource,
		commit,
		runtime.GOOS,
		runtime.GOARCH,
	)

	flaggy.SetName("sup")
	flaggy.SetDescription("Run commands and targets across the hosts of a network, in parallel")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/AlexMikhalev/stackup"

	flaggy.String(&supfileFlag, "f", "file", "Specify an alternate Supfile")
	flaggy.StringSlice(&envFlags, "e", "env", "Set environment variables, e.g. -e KEY=value[,KEY2=value2]")
	flaggy.String(&onlyFlag, "", "only", "Keep only hosts whose name matches the regexp")
	flaggy.String(&exceptFlag, "", "except", "Drop hosts whose name matches the regexp")
	flaggy.Bool(&debuggingFlag, "D", "debug", "a boolean")
	flaggy.Bool(&disablePrefixFlag, "", "disable-prefix", "Suppress the host prefix on output lines")
	flaggy.Bool(&printConfigFlag, "", "print-config", "Print the parsed Supfile")
	flaggy.AddPositionalValue(&networkArg, "NETWORK", 1, false, "The network to run against")
	flaggy.AddPositionalValue(&commandArg, "COMMAND", 2, false, "The command or target to run; more may follow")
	flaggy.SetVersion(info)

	flaggy.Parse()

	envOverrides, err := parseEnvFlags(envFlags)
	if err != nil {
		log.Fatalln(err.Error())
	}

	names := append([]string{commandArg}, flaggy.TrailingArguments...)
	runArgs := app.RunArgs{
		Network:       networkArg,
		Names:         names,
		Only:          onlyFlag,
		Except:        exceptFlag,
		EnvOverrides:  envOverrides,
		DisablePrefix: disablePrefixFlag,
	}

	appConfig, err := config.NewAppConfig("sup", version, commit, date, buildSource, debuggingFlag, supfileFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	app, err := app.NewApp(appConfig)
	if err != nil {
		log.Fatalln(err.Error())
	}

	if printConfigFlag {
		printConfig(app.Supfile)
		os.Exit(0)
	}

	if networkArg == "" || commandArg == "" {
		printUsage(app)
		os.Exit(1)
	}

	err = app.Run(runArgs)
	app.Close()

	if err != nil {
		exitCode := commands.ExitCodeOf(err)

		if errMessage, known := app.KnownError(err); known {
			log.Println(errMessage)
			os.Exit(exitCode)
		}

		switch exitCode {
		case commands.ExitExec, commands.ExitConnect, commands.ExitInterrupted:
			// the per-host lines already went to stderr as they happened
		default:
			if commands.HasErrorCode(err, commands.ExitConfig) {
				log.Println(err.Error())
				break
			}
			newErr := errors.Wrap(err, 0)
			stackTrace := newErr.ErrorStack()
			app.Log.Error(stackTrace)
			log.Printf("%s\n\n%s", app.Tr.ErrorOccurred, stackTrace)
		}
		os.Exit(exitCode)
	}
}

func printConfig(supfile *config.Supfile) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	err := encoder.Encode(supfile)
	if err != nil {
		log.Fatal(err.Error())
	}
	document := buf.String()
	if !color.NoColor {
		document = utils.ColoredYamlString(document)
	}
	fmt.Printf("%v\n", document)
}

func printUsage(app *app.App) {
	fmt.Println(app.Tr.UsageHeader)
	fmt.Println()
	fmt.Println(app.Tr.AvailableNetworks)
	for _, name := range app.Supfile.NetworkNames() {
		fmt.Println("- " + name)
	}
	fmt.Println()
	fmt.Println(app.Tr.AvailableCommands)
	for _, name := range app.Supfile.CommandNames() {
		fmt.Printf("- %s\t%s\n", name, app.Supfile.Commands[name].Desc)
	}
	if len(app.Supfile.Targets) > 0 {
		fmt.Println()
		fmt.Println(app.Tr.AvailableTargets)
		for _, name := range app.Supfile.TargetNames() {
			fmt.Printf("- %s\t%s\n", name, strings.Join(app.Supfile.Targets[name], " "))
		}
	}
}

// parseEnvFlags turns repeated `-e KEY=value[,KEY=value]` flags into one
// override mapping. A key without a value sets the empty string.
func parseEnvFlags(flags []string) (map[string]string, error) {
	overrides := map[string]string{}
	for _, flag := range flags {
		for _, pair := range strings.Split(flag, ",") {
			if pair == "" {
				continue
			}
			key, value, _ := strings.Cut(pair, "=")
			if key == "" {
				return nil, fmt.Errorf("bad environment override %q", pair)
			}
			overrides[key] = value
		}
	}
	return overrides, nil
}

func updateBuildInfo() {
	if version == DEFAULT_VERSION {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				// if sup was built from source we'll show the version as the
				// abbreviated commit hash
				version = utils.SafeTruncate(revision.Value, 7)
			}

			// if version hasn't been set we assume that neither has the date
			time, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = time.Value
			}
		}
	}
}
