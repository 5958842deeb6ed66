package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rzbill/pagelog/internal/runtime"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	openStyle   = cellStyle.Foreground(lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F9E2AF"})
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// newInspectCommand constructs the `inspect` subcommand.
func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the log's blocks and cache state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, true, func(rt *runtime.Runtime) error {
				l := rt.Log()
				tip := l.Tip()
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("log %s", l.ID())))
				fmt.Fprintf(out, "low %d  high %d  size %d  blocks %d  cached pages %d\n",
					tip.LowAddress(), tip.HighAddress(), tip.Size(), tip.BlockCount(), rt.Cache().Len())

				pageSize := uint64(l.PageSize())
				rows := make([][]string, 0, tip.BlockCount())
				open := -1
				for i, b := range tip.Blocks() {
					state := "sealed"
					if !b.Sealed {
						state, open = "open", i
					}
					pages := (b.Length + pageSize - 1) / pageSize
					rows = append(rows, []string{
						fmt.Sprintf("%016x", b.Address),
						strconv.FormatUint(b.Length, 10),
						strconv.FormatUint(pages, 10),
						state,
					})
				}
				t := table.New().
					Border(lipgloss.RoundedBorder()).
					Headers("ADDRESS", "LENGTH", "PAGES", "STATE").
					Rows(rows...).
					StyleFunc(func(row, _ int) lipgloss.Style {
						switch {
						case row == table.HeaderRow:
							return headerStyle
						case row == open:
							return openStyle
						default:
							return cellStyle
						}
					})
				fmt.Fprintln(out, t.Render())
				return nil
			})
		},
	}
}
