package commands

import (
	"regexp"
	"time"

	"github.com/AlexMikhalev/stackup/pkg/config"
	"github.com/AlexMikhalev/stackup/pkg/i18n"
	"github.com/imdario/mergo"
	"github.com/samber/lo"
)

// Plan is the resolved, invocation-scoped execution description: the selected
// network's filtered hosts, the ordered commands to run on them, and the
// merged environment. A plan is immutable once built.
//
// The environment is layered most-general first: Env carries the global and
// network layers (plus the injected SUP_* variables), each host's Env field
// carries its per-host layer, and Overrides carries the CLI layer, which wins
// over everything. The compiler folds the three together per host.
type Plan struct {
	NetworkName   string
	Network       config.Network
	Hosts         []Host
	Commands      []config.Command
	Env           map[string]string
	Overrides     map[string]string
	DisablePrefix bool
}

// PlanArgs is what the CLI front end resolved from its arguments.
type PlanArgs struct {
	Network       string
	Names         []string // command and/or target names, in order
	Only          string
	Except        string
	EnvOverrides  map[string]string
	User          string // the invoker's OS user
	Time          time.Time
	DisablePrefix bool
	Tr            *i18n.TranslationSet
}

// BuildPlan resolves args against the configuration: it selects the network,
// expands targets into their commands, resolves the inventory, filters the
// host list, and merges the global and network environment layers (network
// winning). The per-host layer and the CLI overrides are attached unmerged,
// for the compiler to fold in per host.
func BuildPlan(conf *config.Supfile, args PlanArgs) (*Plan, error) {
	tr := args.Tr
	if tr == nil {
		tr = i18n.EnglishTranslationSet()
	}

	network, ok := conf.Networks[args.Network]
	if !ok {
		return nil, configErrorf("%s %q", tr.UnknownNetwork, args.Network)
	}

	env, err := mergedEnv(conf, network, args)
	if err != nil {
		return nil, err
	}

	hosts, err := resolveHosts(network, env, args, tr)
	if err != nil {
		return nil, err
	}

	commands, err := resolveCommands(conf, args.Names, tr)
	if err != nil {
		return nil, err
	}

	for _, cmd := range commands {
		if cmd.Stdin && len(hosts) > 1 {
			return nil, configErrorf("command %q: %s (%d hosts selected)", cmd.Name, tr.StdinRequiresSingleHost, len(hosts))
		}
	}

	return &Plan{
		NetworkName:   args.Network,
		Network:       network,
		Hosts:         hosts,
		Commands:      commands,
		Env:           env,
		Overrides:     args.EnvOverrides,
		DisablePrefix: args.DisablePrefix,
	}, nil
}

func mergedEnv(conf *config.Supfile, network config.Network, args PlanArgs) (map[string]string, error) {
	env := map[string]string{}
	if err := mergo.Merge(&env, conf.Env, mergo.WithOverride); err != nil {
		return nil, WrapError(err)
	}
	if err := mergo.Merge(&env, network.Env, mergo.WithOverride); err != nil {
		return nil, WrapError(err)
	}

	env["SUP_NETWORK"] = args.Network
	env["SUP_USER"] = args.User
	env["SUP_TIME"] = args.Time.UTC().Format(time.RFC3339)

	return env, nil
}

func resolveHosts(network config.Network, env map[string]string, args PlanArgs, tr *i18n.TranslationSet) ([]Host, error) {
	hostStrings := append([]string{}, network.Hosts...)

	// the inventory expression runs exactly once, at plan build, and sees
	// the fully merged environment, overrides included
	inventoryEnv := map[string]string{}
	if err := mergo.Merge(&inventoryEnv, env, mergo.WithOverride); err != nil {
		return nil, WrapError(err)
	}
	if err := mergo.Merge(&inventoryEnv, args.EnvOverrides, mergo.WithOverride); err != nil {
		return nil, WrapError(err)
	}
	inventoryHosts, err := network.ResolveInventory(inventoryEnv)
	if err != nil {
		return nil, configErrorf("resolving inventory for network %q: %s", args.Network, err.Error())
	}
	hostStrings = append(hostStrings, inventoryHosts...)

	if args.Only != "" {
		re, err := regexp.Compile(args.Only)
		if err != nil {
			return nil, configErrorf("bad --only regexp: %s", err.Error())
		}
		hostStrings = lo.Filter(hostStrings, func(h string, _ int) bool {
			return re.MatchString(h)
		})
	}
	if args.Except != "" {
		re, err := regexp.Compile(args.Except)
		if err != nil {
			return nil, configErrorf("bad --except regexp: %s", err.Error())
		}
		hostStrings = lo.Filter(hostStrings, func(h string, _ int) bool {
			return !re.MatchString(h)
		})
	}

	if len(hostStrings) == 0 {
		return nil, configErrorf("%s in network %q", tr.EmptyHostList, args.Network)
	}

	hosts := make([]Host, 0, len(hostStrings))
	for _, s := range hostStrings {
		host, err := ParseHost(s, args.User)
		if err != nil {
			return nil, err
		}
		host.Env = network.HostEnv[s]
		hosts = append(hosts, host)
	}
	return hosts, nil
}

func resolveCommands(conf *config.Supfile, names []string, tr *i18n.TranslationSet) ([]config.Command, error) {
	if len(names) == 0 {
		return nil, configErrorf("no command or target given")
	}

	var commands []config.Command
	for _, name := range names {
		if cmd, ok := conf.Commands[name]; ok {
			commands = append(commands, cmd)
			continue
		}
		if target, ok := conf.Targets[name]; ok {
			for _, cmdName := range target {
				// validated at parse time, so the lookup can't miss
				commands = append(commands, conf.Commands[cmdName])
			}
			continue
		}
		return nil, configErrorf("%s %q", tr.UnknownCommandOrTarget, name)
	}
	return commands, nil
}
