package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// TreeCommand displays the decision tree of a description.
func TreeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <description>",
		Short: "Display the decision tree of an instruction set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s.dump(cmd.OutOrStdout(), s.root)
			fmt.Fprint(cmd.OutOrStdout(), s.root.String())
			return nil
		},
	}
}
