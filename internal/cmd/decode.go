package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/decgen/emu"
	"github.com/sarchlab/decgen/loader"
	"github.com/sarchlab/decgen/plan"
)

// DecodeCommand decodes a binary by running the planned decoder over it.
func DecodeCommand(opts *Options) *cobra.Command {
	var (
		rawAddr string
		limit   uint64
	)

	cmd := &cobra.Command{
		Use:   "decode <description> <binary>",
		Short: "Decode the code of an ELF file or raw image.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(opts, args[0], cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			addr, err := strconv.ParseUint(rawAddr, 0, 64)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", rawAddr, err)
			}
			prog, err := loadProgram(args[1], addr)
			if err != nil {
				return err
			}
			s.logger.Debugf("loaded %s: machine %v, entry 0x%x, %d segments",
				args[1], prog.Machine, prog.EntryPoint, len(prog.Segments))

			return s.decodeProgram(cmd.OutOrStdout(), prog, limit)
		},
	}
	cmd.Flags().StringVar(&rawAddr, "addr", "0", "load address of a raw image")
	cmd.Flags().Uint64Var(&limit, "max", 0, "maximum number of instructions per segment, 0 for no limit")

	return cmd
}

func loadProgram(path string, addr uint64) (*loader.Program, error) {
	isELF, err := loader.IsELF(path)
	if err != nil {
		return nil, err
	}
	if isELF {
		return loader.Load(path)
	}
	return loader.LoadRaw(path, addr)
}

func (s *session) decodeProgram(w io.Writer, prog *loader.Program, limit uint64) error {
	p, err := s.planner()
	if err != nil {
		return err
	}
	dec, err := p.Decode(s.root)
	if err != nil {
		return err
	}
	dis, err := p.Disassemble(s.root, s.desc.Formats)
	if err != nil {
		return err
	}

	for _, seg := range prog.Code() {
		mem := emu.NewMemory()
		mem.LoadProgram(seg.VirtAddr, seg.Data)

		machineOpts := append(formatterFuncs(s.desc.Formats),
			emu.WithMemory(mem),
			emu.WithDisassembly(dis),
			emu.WithMaxInstructions(limit),
		)
		m := emu.NewMachine(p.Config(), dec, machineOpts...)
		m.SetPC(seg.VirtAddr)

		end := seg.VirtAddr + uint64(len(seg.Data))
		for m.PC() < end {
			pc := m.PC()
			res := m.Step()
			if res.Err != nil {
				if limit > 0 && m.InstructionCount() >= limit {
					break
				}
				return res.Err
			}

			if res.Illegal {
				n := uint64(s.layout.UnitBytes())
				fmt.Fprintf(w, "%08x  %-24s(illegal)\n", pc, hexBytes(mem.ReadBytes(pc, int(n))))
				m.SetPC(pc + n)
				continue
			}

			if res.Length == 0 {
				return fmt.Errorf("decoder at 0x%x did not report a length; set length_var", pc)
			}

			text := res.Text
			if res.Branch {
				text += "  ; branch"
			}
			fmt.Fprintf(w, "%08x  %-24s%s\n", pc, hexBytes(mem.ReadBytes(pc, res.Length)), text)
		}
	}

	return nil
}

// formatterFuncs registers a pass-through for every formatter function, so
// that any description can be disassembled without native helpers.
func formatterFuncs(formats plan.FormatTable) []emu.MachineOption {
	var opts []emu.MachineOption
	for _, f := range formats {
		if f.Func == "" {
			continue
		}
		if f.Spec == "" {
			opts = append(opts, emu.WithPrinter(f.Func, joinValues))
		} else {
			opts = append(opts, emu.WithFunc(f.Func, firstValue))
		}
	}
	return opts
}

func firstValue(args ...uint64) uint64 {
	if len(args) == 0 {
		return 0
	}
	return args[0]
}

func joinValues(args ...uint64) string {
	parts := make([]string, len(args))
	for i, v := range args {
		parts[i] = fmt.Sprintf("%#x", v)
	}
	return strings.Join(parts, ", ")
}

func hexBytes(b []byte) string {
	return fmt.Sprintf("% x", b)
}
