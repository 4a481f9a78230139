// Package cmd implements the decgen command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// Options are the flags shared by every command.
type Options struct {
	// ConfigPath is a JSON generator config. Empty uses the defaults.
	ConfigPath string

	// Verbose lowers the log level to debug.
	Verbose bool

	// Dump prints the internal structures a command works on.
	Dump bool

	// Target overrides the target byte order: "big" or "little".
	Target string
}

// NewRoot command.
func NewRoot() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "decgen",
		Short: "decgen builds instruction decoders from ISA descriptions.",
		Example: `  decgen tree isa.yaml          # displays the decision tree
  decgen plan isa.yaml          # lists the decoder operations
  decgen decode isa.yaml a.out  # decodes a binary with the planned decoder
  decgen encode isa.yaml add rd=1 rs=2`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "path to a JSON generator config")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&opts.Dump, "dump", false, "dump internal structures")
	flags.StringVar(&opts.Target, "target", "", `target byte order, "big" or "little"`)

	root.AddCommand(
		TreeCommand(opts),
		PlanCommand(opts),
		StatsCommand(opts),
		DecodeCommand(opts),
		EncodeCommand(opts),
	)

	return root
}
