package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lanbox",
		Short: "Share files with every device on your LAN",
		Long: `lanbox runs a small upload server on the local network and
talks to one from the command line.

Examples:
  lanbox serve
  lanbox serve --port 8080 --upload-dir ./shared
  lanbox send 192.168.1.20:3000 photo.jpg notes.txt
  lanbox ls 192.168.1.20:3000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		sendCmd(),
		lsCmd(),
		getCmd(),
		rmCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
