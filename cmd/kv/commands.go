package kv

import (
	"fmt"

	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/spf13/cobra"
)

var (
	addCmd = &cobra.Command{
		Use:   "add [key] [value] [[key] [value]...]",
		Short: "Writes one or more records in a single batch, overwriting existing values",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected pairs of key and value, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			records := make([]store.Record, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				records = append(records, store.Record{Key: args[i], Value: util.ParseJSON(args[i+1])})
			}

			ctx, cancel := util.Context()
			defer cancel()
			if err := namespace.AddRecords(ctx, records); err != nil {
				return err
			}
			fmt.Printf("added %d record(s) to %s\n", len(records), namespace.Prefix())
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context()
			defer cancel()
			value, found, err := namespace.GetRecord(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("key=%s, found=false\n", args[0])
				return nil
			}
			return util.PrintJSON(value)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [json object]",
		Short: "Merges the fields of a JSON object into the record for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := util.ParseJSONObject(args[1])
			if err != nil {
				return err
			}
			ctx, cancel := util.Context()
			defer cancel()
			merged, err := namespace.UpdateRecord(ctx, args[0], patch)
			if err != nil {
				return err
			}
			return util.PrintJSON(merged)
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists the keys of the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context()
			defer cancel()
			keys, err := namespace.ListKeys(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Prints all records of the namespace as JSON object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context()
			defer cancel()
			records, err := namespace.ExportAll(ctx)
			if err != nil {
				return err
			}
			return util.PrintJSON(records)
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes the record for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := util.Context()
			defer cancel()
			removed, err := namespace.RemoveRecord(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, removed=%v\n", args[0], removed)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all records of the namespace (--all: of the whole store)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")

			ctx, cancel := util.Context()
			defer cancel()

			var removed int
			var err error
			if all {
				removed, err = namespace.Manager().ClearStore(ctx)
			} else {
				removed, err = namespace.ClearAll(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Printf("removed %d record(s)\n", removed)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := util.GetConfig()
			if err != nil {
				return err
			}
			fmt.Println(conf.String())

			ctx, cancel := util.Context()
			defer cancel()
			info, err := namespace.Manager().Info(ctx)
			if err != nil {
				return err
			}
			return util.PrintJSON(info)
		},
	}
)

func init() {
	clearCmd.Flags().Bool("all", false, util.WrapString("Clear every namespace of the store, including records not written by litemap"))
}
