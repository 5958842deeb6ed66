package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rzbill/pagelog/internal/records"
	"github.com/rzbill/pagelog/internal/runtime"
	"github.com/spf13/cobra"
)

// newAppendCommand constructs the `append` subcommand.
func newAppendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "append KEY=VALUE...",
		Short: "Append records and sync them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs := make([]records.Record, 0, len(args))
			for _, a := range args {
				k, v, ok := strings.Cut(a, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid record %q; expected KEY=VALUE", a)
				}
				recs = append(recs, records.Record{Key: []byte(k), Value: []byte(v)})
			}
			return withRuntime(cmd, false, func(rt *runtime.Runtime) error {
				addrs, err := records.NewWriter(rt.Log()).AppendBatch(recs)
				if err != nil {
					return err
				}
				if err := rt.Log().Sync(); err != nil {
					return err
				}
				for i, a := range addrs {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", a, recs[i].Key)
				}
				return nil
			})
		},
	}
}

// printRecords writes every record the cursor can currently reach.
func printRecords(cmd *cobra.Command, c *records.Cursor, limit int, printed *int) (bool, error) {
	for c.Next() {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s=%s\n", c.Address(), c.Key(), c.Value())
		*printed++
		if limit > 0 && *printed >= limit {
			return true, nil
		}
	}
	return false, c.Err()
}

// newScanCommand constructs the `scan` subcommand.
func newScanCommand() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Print records from the log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, _ := cmd.Flags().GetUint64("from")
			limit, _ := cmd.Flags().GetInt("limit")
			return withRuntime(cmd, true, func(rt *runtime.Runtime) error {
				if !cmd.Flags().Changed("from") {
					from = rt.Log().LowAddress()
				}
				printed := 0
				_, err := printRecords(cmd, records.NewCursor(rt.Log(), from), limit, &printed)
				return err
			})
		},
	}
	scanCmd.Flags().Uint64("from", 0, "Start address (a record boundary; default the oldest record)")
	scanCmd.Flags().Int("limit", 0, "Stop after N records (0 = all)")
	return scanCmd
}

// newFollowCommand constructs the `follow` subcommand.
func newFollowCommand() *cobra.Command {
	followCmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow a log written by another process and print new records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			fromStart, _ := cmd.Flags().GetBool("from-start")
			return withRuntime(cmd, true, func(rt *runtime.Runtime) error {
				l := rt.Log()
				from := l.HighAddress()
				if fromStart {
					from = l.LowAddress()
				}
				c := records.NewCursor(l, from)
				f := rt.Follower(nil)
				f.Start()

				ctx := cmd.Context()
				printed := 0
				for {
					done, err := printRecords(cmd, c, limit, &printed)
					if err != nil || done {
						return errors.Join(err, f.Stop())
					}
					select {
					case <-ctx.Done():
						return f.Stop()
					default:
					}
					l.WaitForUpdate(250 * time.Millisecond)
				}
			})
		},
	}
	followCmd.Flags().Int("limit", 0, "Stop after N records (0 = until interrupted)")
	followCmd.Flags().Bool("from-start", false, "Print existing records first")
	return followCmd
}
