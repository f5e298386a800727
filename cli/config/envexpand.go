package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// ExpandEnv expands environment references in a config document.
//
//	${VAR}            value of VAR, or "" when unset
//	${VAR:-default}   value of VAR, or default when unset or empty
//	${VAR:?}          value of VAR; unset or empty is an error
//
// Every missing required variable is reported in one error.
func ExpandEnv(input string) (string, error) {
	return expand(input, os.LookupEnv)
}

func expand(input string, lookup func(string) (string, bool)) (string, error) {
	missing := map[string]bool{}
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, op, arg := groups[1], groups[2], groups[3]

		if value, ok := lookup(name); ok && value != "" {
			return value
		}
		switch op {
		case ":-":
			return arg
		case ":?":
			missing[name] = true
		}
		return ""
	})
	if len(missing) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(missing))
	for n := range missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return "", fmt.Errorf("required environment variables not set: %s", strings.Join(names, ", "))
}
