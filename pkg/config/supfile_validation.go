package config

import (
	"github.com/go-errors/errors"
)

// validate checks the structural rules that the YAML schema alone can't
// express: every command has exactly one execution mode, serial counts make
// sense, and targets only refer to commands that exist.
func (s *Supfile) validate() error {
	for name, cmd := range s.Commands {
		if err := cmd.validate(); err != nil {
			return errors.Errorf("command %q: %s", name, err.Error())
		}
	}

	for name, cmds := range s.Targets {
		if len(cmds) == 0 {
			return errors.Errorf("target %q has no commands", name)
		}
		for _, cmdName := range cmds {
			if _, ok := s.Commands[cmdName]; !ok {
				return errors.Errorf("target %q refers to unknown command %q", name, cmdName)
			}
		}
	}

	return nil
}

func (c Command) validate() error {
	modes := 0
	if c.Run != "" {
		modes++
	}
	if c.Local != "" {
		modes++
	}
	if c.Script != "" {
		modes++
	}
	if len(c.Upload) > 0 {
		modes++
	}
	if modes == 0 {
		return errors.New("missing one of run, local, script or upload")
	}
	if modes > 1 {
		return errors.New("run, local, script and upload are mutually exclusive")
	}

	if c.Serial < 0 {
		return errors.New("serial must be a positive number")
	}
	if c.Serial > 0 && c.Once {
		return errors.New("once and serial are mutually exclusive")
	}

	if c.Stdin && c.Run == "" {
		return errors.New("stdin can only be attached to a run command")
	}

	return nil
}
