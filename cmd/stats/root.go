package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/ValentinKolb/litemap/cmd/util"
	"github.com/ValentinKolb/litemap/lib/store"
	"github.com/ValentinKolb/litemap/lib/store/lstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
)

var (
	// StatsCmd runs a small workload and prints the queue metrics
	StatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Runs a small workload against a store and prints the queue metrics",
		Long: `Runs a small workload against a store and prints the queue metrics in the
Prometheus text format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, _ := cmd.Flags().GetInt("records")
			ns, err := util.Namespace()
			if err != nil {
				return err
			}
			ctx, cancel := util.Context()
			defer cancel()
			return Run(ctx, ns, n, cmd.OutOrStdout())
		},
	}
)

func init() {
	StatsCmd.Flags().Int("records", 100, util.WrapString("Number of records written, updated and removed by the workload"))
}

// Run writes, updates, reads and removes n records in ns concurrently and
// writes the metrics of all queues to w afterward.
func Run(ctx context.Context, ns *lstore.Namespace, n int, w io.Writer) error {
	pending := make([]interface{ Done() <-chan struct{} }, 0, 4*n)

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("__stats-%d", i)
		add, err := ns.AddRecordsAsync([]store.Record{{Key: key, Value: map[string]any{"n": i}}})
		if err != nil {
			return err
		}
		update, err := ns.UpdateRecordAsync(key, store.Object{"seen": true})
		if err != nil {
			return err
		}
		get, err := ns.GetRecordAsync(key)
		if err != nil {
			return err
		}
		remove, err := ns.RemoveRecordAsync(key)
		if err != nil {
			return err
		}
		pending = append(pending, add, update, get, remove)
	}

	// the operations finish in order, waiting for the last one is enough
	if len(pending) > 0 {
		select {
		case <-pending[len(pending)-1].Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	metrics.WritePrometheus(w, false)
	return nil
}
