package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func itoa(i int) string {
	return strconv.Itoa(i)
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}

// parseID parses a numeric object id argument
func parseID(kind, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, usageErrorf("%s must be a positive number, got %q", kind, s)
	}
	return id, nil
}

// exactArgs is cobra.ExactArgs reporting a usage error
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Message: err.Error()}
		}
		return nil
	}
}

// noArgs is cobra.NoArgs reporting a usage error
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &UsageError{Message: err.Error()}
	}
	return nil
}
