package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/tree"
)

// StatsCommand prints tree and instruction size statistics.
func StatsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <description>",
		Short: "Print decision tree and instruction size statistics.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s.dump(cmd.OutOrStdout(), s.raws)

			st := tree.Collect(s.root, s.raws)
			sizes := insts.SizeInfo(s.raws)
			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "instructions: %d\n", len(s.desc.Instructions))
			fmt.Fprintf(w, "encodings:    %d\n", len(s.raws))
			fmt.Fprintf(w, "leaves:       %d\n", st.Leaves)
			fmt.Fprintf(w, "depth:        min %d, max %d, avg %.2f\n", st.MinDepth, st.MaxDepth, st.AvgDepth)
			if sizes.Fixed() {
				fmt.Fprintf(w, "size:         fixed, %d bits\n", sizes.Min)
			} else {
				fmt.Fprintf(w, "size:         variable, %d (%s) to %d (%s) bits\n",
					sizes.Min, sizes.Shortest, sizes.Max, sizes.Longest)
			}
			if len(st.Unreachable) > 0 {
				fmt.Fprintf(w, "unreachable:  %s\n", strings.Join(st.Unreachable, ", "))
			}
			return nil
		},
	}
}
