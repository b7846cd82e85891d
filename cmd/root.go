package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photo-report",
	Short: "Builds printable photographic reports from monitoring records",
	Long: `Photo Report turns the photos attached to workplace monitoring records
into a paginated, print-ready report. Records are read from PostgreSQL or the
legacy MariaDB database, their images are fetched and re-encoded, and the
result is laid out in a fixed grid per A4 page.`,
	SilenceUsage: true,
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
