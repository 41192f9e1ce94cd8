package main

import (
	"os"
	"strings"

	"dayplan-cli/internal/cli"
)

func isLaunchLink(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "?") {
		return len(s) > 1
	}
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func rewriteLaunchLinkArgs(argv []string) []string {
	// `dayplan <link> [command]` == `dayplan --launch <link> [command]`.
	// Flags can precede the link, so scan for the first positional token.
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--api-url":       true,
		"--data-dir":      true,
		"--platform-user": true,
		"--launch":        true,
		"--header":        true,
		"--format":        true,
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			if strings.Contains(a, "=") {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}

		if !isLaunchLink(a) {
			return argv
		}
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[:i]...)
		out = append(out, "--launch", argv[i])
		out = append(out, argv[i+1:]...)
		return out
	}

	return argv
}

func main() {
	os.Args = rewriteLaunchLinkArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
