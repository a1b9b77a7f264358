package kv

import (
	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/ValentinKolb/litemap/lib/store/lstore"
	"github.com/spf13/cobra"
)

var (
	namespace *lstore.Namespace

	// KeyValueCommands represents the record command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform record operations on a namespace of a store",
		Long: `Perform record operations on a namespace of a store.

Values are given as JSON, arguments that are not valid JSON are stored as string.`,
		PersistentPreRunE: setupNamespace,
	}
)

func init() {
	// Add subcommands
	KeyValueCommands.AddCommand(addCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(updateCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(exportCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupNamespace runs the common setup and resolves the configured namespace
func setupNamespace(cmd *cobra.Command, args []string) error {
	if err := util.Setup(cmd, args); err != nil {
		return err
	}
	var err error
	namespace, err = util.Namespace()
	return err
}
