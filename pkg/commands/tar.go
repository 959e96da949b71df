package commands

import (
	"strings"

	"github.com/AlexMikhalev/stackup/pkg/utils"
)

// Uploads ride on tar: a local `tar cf -` subprocess produces the stream and
// the destination venue runs `tar xf -` with its stdin wired to that stream.
// Glob-looking src values are handed to tar untouched.

// LocalTarCommand returns the command line producing a tar stream of src,
// relative to the current directory.
func LocalTarCommand(src, exclude string) string {
	template := "tar -C . -cf - {{src}}"
	if exclude != "" {
		template = "tar -C . -cf - --exclude {{exclude}} {{src}}"
	}
	return utils.ResolvePlaceholderString(template, map[string]string{
		"src":     src,
		"exclude": exclude,
	})
}

// RemoteTarCommand returns the shell command extracting a tar stream read
// from stdin under the dir directory.
func RemoteTarCommand(dir string) string {
	return "tar -C " + ShellQuote(dir) + " -xf -"
}

// ShellQuote wraps s in single quotes so that a POSIX shell treats it as one
// literal word.
func ShellQuote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}
