package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/decgen/insts"
)

// EncodeCommand assembles one instruction from operand values.
func EncodeCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <description> <name|mnemonic> [operand=value ...]",
		Short: "Encode one instruction.",
		Long: `Encode one instruction. The instruction is named either by an encoding
name such as ld_1, or by a mnemonic, in which case the first encoding whose
operands match the given ones is used.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			values, err := parseValues(args[2:])
			if err != nil {
				return err
			}
			raw, err := s.encoding(args[1], values)
			if err != nil {
				return err
			}
			s.dump(cmd.OutOrStdout(), raw)

			code, err := raw.Encode(values, s.layout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", raw.Name, hexBytes(code))
			return nil
		},
	}
}

func parseValues(args []string) (map[string]uint64, error) {
	values := make(map[string]uint64, len(args))
	for _, arg := range args {
		name, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("operand %q is not name=value", arg)
		}
		v, err := strconv.ParseUint(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("operand %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

// encoding finds the encoding named name, or else the first encoding of the
// mnemonic name whose operands are exactly those in values.
func (s *session) encoding(name string, values map[string]uint64) (*insts.RawInstruction, error) {
	for _, r := range s.raws {
		if r.Name == name {
			return r, nil
		}
	}

	given := make([]string, 0, len(values))
	for k := range values {
		given = append(given, k)
	}
	sort.Strings(given)

	found := false
	for _, r := range s.raws {
		if r.Mnemonic != name {
			continue
		}
		found = true
		ops := append([]string(nil), r.Operands()...)
		sort.Strings(ops)
		if strings.Join(ops, ",") == strings.Join(given, ",") {
			return r, nil
		}
	}

	if found {
		return nil, fmt.Errorf("no encoding of %s takes operands [%s]", name, strings.Join(given, ", "))
	}
	return nil, fmt.Errorf("unknown instruction %s", name)
}
