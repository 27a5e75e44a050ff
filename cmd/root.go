package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegroups",
	Short: "A CLI tool for grouping faces in photo folders",
	Long: `Face Groups scans photo folders with a face detection service,
clusters the detected faces into per-person groups and keeps the
results up to date as files are added, changed or removed.

Groups can be named, merged, split and matched against a registry of
known people backed by PostgreSQL or MariaDB.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
