package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/decgen/plan"
)

// PlanCommand lists the decoder or disassembler operations.
func PlanCommand(opts *Options) *cobra.Command {
	var disassemble bool

	cmd := &cobra.Command{
		Use:   "plan <description>",
		Short: "List the operations of the planned decoder.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			p, err := s.planner()
			if err != nil {
				return err
			}

			var out *plan.Plan
			if disassemble {
				out, err = p.Disassemble(s.root, s.desc.Formats)
			} else {
				out, err = p.Decode(s.root)
			}
			if err != nil {
				return err
			}

			s.dump(cmd.OutOrStdout(), out.Leaves)
			return plan.Dump(cmd.OutOrStdout(), out.Ops)
		},
	}
	cmd.Flags().BoolVarP(&disassemble, "disassemble", "d", false, "plan the disassembler instead")

	return cmd
}
