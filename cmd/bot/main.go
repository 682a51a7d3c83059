package main

import (
	"fmt"
	"os"

	"viewbot/cmd/bot/commands"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "viewbot",
		Short: "Telegram rewards bot",
		Long:  "A Telegram bot that lets users earn points through referrals and codes and spend them on post views",
	}

	serve := commands.NewServeCommand()
	rootCmd.AddCommand(serve, commands.NewMigrateCommand())
	rootCmd.RunE = serve.RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
