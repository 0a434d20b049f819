package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigPath = "./config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "finnguide: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "finnguide",
		Short:         "finnguide - study-in-Finland assistant",
		Long:          "A ReAct agent that answers questions about studying and living in Finland,\nbacked by site-restricted web search.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", envOr("FINNGUIDE_CONFIG", defaultConfigPath), "config file path")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newAskCmd(&cfgPath),
		newEncryptCmd(),
		newDoctorCmd(&cfgPath),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
