package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/rzbill/pagelog/internal/runtime"
	"github.com/spf13/cobra"
)

// newPageCommand constructs the `page` subcommand.
func newPageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "page ADDRESS",
		Short: "Hex dump the page holding ADDRESS",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := strconv.ParseUint(args[0], 0, 64)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", args[0], err)
			}
			return withRuntime(cmd, true, func(rt *runtime.Runtime) error {
				v, err := rt.Log().PageView(address)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "page %d (%d bytes)\n", v.Address, v.Len())
				fmt.Fprint(out, hex.Dump(v.Bytes))
				return nil
			})
		},
	}
}

// newPruneCommand constructs the `prune` subcommand.
func newPruneCommand() *cobra.Command {
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete the oldest sealed blocks until the log fits in --max-bytes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			maxBytes, _ := cmd.Flags().GetUint64("max-bytes")
			return withRuntime(cmd, false, func(rt *runtime.Runtime) error {
				n, err := rt.Prune(cmd.Context(), maxBytes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d blocks; log starts at %d\n", n, rt.Log().LowAddress())
				return nil
			})
		},
	}
	pruneCmd.Flags().Uint64("max-bytes", 0, "Size bound in bytes (0 = retention.maxBytes from config)")
	return pruneCmd
}

// newVerifyCommand constructs the `verify` subcommand.
func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash sealed blocks against their recorded digests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, false, func(rt *runtime.Runtime) error {
				rep, err := rt.Verify(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, m := range rep.Mismatches {
					if m.Err != nil {
						fmt.Fprintf(out, "%016x\tunreadable: %v\n", m.Address, m.Err)
						continue
					}
					fmt.Fprintf(out, "%016x\texpected %s got %s\n", m.Address, m.Expected, m.Actual)
				}
				fmt.Fprintf(out, "checked %d blocks, %d mismatches\n", rep.Checked, len(rep.Mismatches))
				if !rep.OK() {
					return fmt.Errorf("%d blocks failed verification", len(rep.Mismatches))
				}
				return nil
			})
		},
	}
}
