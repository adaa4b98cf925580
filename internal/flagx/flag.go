// Package flagx contains helpers for the two-phase command-line parsing used
// by the server: the config and .env locations are read first, the rest of
// the flags are applied after every file and environment layer.
package flagx

import (
	"strings"

	"github.com/spf13/pflag"
)

// FilterArgs keeps only the flags listed in allowedFlags together with their
// values, so a partial FlagSet can parse os.Args without tripping over flags
// it does not know.
//
// Both "-c conf.yaml" and "--config=conf.yaml" forms are recognised. A token
// after a flag is taken as its value unless it starts with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, keep := allowed[name]; keep {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, keep := allowed[arg]; !keep {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// FilePaths extracts the config file (-c/--config) and the dotenv file
// (--env-file) locations from args. Missing flags yield empty strings.
func FilePaths(args []string) (configFile, envFile string) {
	filtered := FilterArgs(args, []string{"-c", "--config", "--env-file"})

	fs := pflag.NewFlagSet("files", pflag.ContinueOnError)
	fs.StringVarP(&configFile, "config", "c", "", "path to config file (.json, .jsonc, .yaml)")
	fs.StringVar(&envFile, "env-file", "", "path to .env file")
	_ = fs.Parse(filtered)

	return configFile, envFile
}
