package demo

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/ValentinKolb/litemap/lib/registry"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/spf13/cobra"
)

var (
	// DemoCmd seeds sample users into several stores
	DemoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Writes sample users into several stores and reads them back",
		Long: `Writes sample users into several stores and reads them back.

For every store the demo adds two users, updates the last login of the first
one, lists all keys, reads both users and tries to delete a user that does
not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx, cancel := util.Context()
			defer cancel()
			return Run(ctx, util.Registry(), dir, cmd.OutOrStdout())
		},
	}
)

func init() {
	DemoCmd.Flags().String("dir", "./db", util.WrapString("Directory the demo stores are created in"))
}

// Run executes the demo against the stores litemap.db, testmap.db and
// anothermap.db in dir.
func Run(ctx context.Context, reg *registry.Registry, dir string, out io.Writer) error {
	now := time.Now().UTC().Format(time.RFC3339)
	sampleUsers := map[string]store.Value{
		"user1": map[string]any{"name": "Alice", "role": "admin", "createdAt": now},
		"user2": map[string]any{"name": "Bob", "role": "editor", "createdAt": now},
	}

	for _, file := range []string{"litemap.db", "testmap.db", "anothermap.db"} {
		id := filepath.Join(dir, file)
		users, err := reg.Namespace(id, "users/")
		if err != nil {
			return err
		}

		if err := users.AddRecordMap(ctx, sampleUsers); err != nil {
			return err
		}
		fmt.Fprintf(out, "Added users to %s: [user1 user2]\n", id)

		if _, err := users.UpdateRecord(ctx, "user1", store.Object{"lastLogin": time.Now().UTC().Format(time.RFC3339)}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated user1 in %s\n", id)

		keys, err := users.ListKeys(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "All user keys in %s: %v\n", id, keys)

		for _, key := range []string{"user1", "user2"} {
			value, found, err := users.GetRecord(ctx, key)
			if err != nil {
				return err
			}
			if user, ok := value.(map[string]any); found && ok {
				fmt.Fprintf(out, "User %v has role: %v in %s\n", user["name"], user["role"], id)
			}
		}

		deleted, err := users.RemoveRecord(ctx, "user3")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted user3 in %s: %v\n", id, deleted)
	}

	return reg.CloseAll(ctx)
}
