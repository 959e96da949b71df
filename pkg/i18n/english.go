package i18n

func englishSet() TranslationSet {
	return TranslationSet{
		ErrorOccurred:           "An error occurred! Please create an issue at https://github.com/AlexMikhalev/stackup/issues",
		ConnectionFailed:        "Could not connect to the host. Check that the host is reachable and that your ssh agent holds a usable key.",
		NoSSHAgent:              "No ssh agent found. Start one and add your key: eval `ssh-agent` && ssh-add",
		UnknownNetwork:          "Unknown network",
		UnknownCommandOrTarget:  "Unknown command or target",
		EmptyHostList:           "No hosts left after filtering",
		StdinRequiresSingleHost: "A command with stdin attached can only run against a single host",
		Interrupted:             "Interrupted",
		UsageHeader:             "Usage: sup [OPTIONS] NETWORK COMMAND [...]",
		AvailableNetworks:       "Networks:",
		AvailableCommands:       "Commands:",
		AvailableTargets:        "Targets:",
		RunningCommand:          "Running command",
		CommandFailed:           "Command failed",
		UploadFailed:            "Upload failed",
	}
}
