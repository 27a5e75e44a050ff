package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag unwraps a flag lookup. A failed lookup means the flag was
// never defined in init(), which is a programming error.
func mustFlag[T any](val T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("flag lookup: %v", err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(cmd.Flags().GetBool(name))
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(cmd.Flags().GetInt(name))
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(cmd.Flags().GetString(name))
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustFlag(cmd.Flags().GetFloat64(name))
}
