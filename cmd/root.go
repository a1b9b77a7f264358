package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/litemap/cmd/demo"
	"github.com/ValentinKolb/litemap/cmd/kv"
	"github.com/ValentinKolb/litemap/cmd/stats"
	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "litemap",
		Short: "namespaced JSON key-value store",
		Long: fmt.Sprintf(`litemap (v%s)

A lightweight, namespaced key-value store for JSON records on top of an
embedded database (sqlite, bolt, pebble). All operations against a store are
executed one at a time, in order, through a single operation queue.`, Version),
		PersistentPreRunE: util.Setup,
		SilenceUsage:      true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of litemap",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("litemap v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper and close the stores when a command finished
	cobra.OnInitialize(util.InitConfig)
	cobra.OnFinalize(util.Shutdown)

	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(demo.DemoCmd)
	RootCmd.AddCommand(stats.StatsCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupStoreFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
