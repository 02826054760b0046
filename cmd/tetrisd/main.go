package main

import (
	"os"

	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "tetrisd",
		Short:         "Multiplayer falling-block puzzle server and headless bot.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}
	root.AddCommand(newServeCmd(), newBotCmd())

	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
