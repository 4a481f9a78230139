package plan

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes a readable listing of ops.
func Dump(w io.Writer, ops []Op) error {
	d := &dumper{w: w}
	d.ops(ops, 0)
	return d.err
}

type dumper struct {
	w   io.Writer
	err error
}

func (d *dumper) line(depth int, format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, "%s%s\n", strings.Repeat("    ", depth), fmt.Sprintf(format, args...))
}

func (d *dumper) ops(ops []Op, depth int) {
	for _, op := range ops {
		switch o := op.(type) {
		case Declare:
			d.line(depth, "declare %s u%d", o.Var, o.Width)
		case Assign:
			d.line(depth, "%s = %s", o.Var, o.Value)
		case Read:
			swap := ""
			if o.Swap {
				swap = " swap"
			}
			d.line(depth, "%s = read(%d, %d)%s", o.Var, o.Width, o.Offset, swap)
		case BranchSwitch:
			d.line(depth, "switch %s", o.Scrutinee)
			for _, c := range o.Cases {
				d.line(depth+1, "case 0x%x: // %s", c.Key, c.Bits)
				d.ops(c.Body, depth+2)
			}
			d.line(depth+1, "default:")
			d.ops(o.Default, depth+2)
		case Call:
			d.line(depth, "%s(%s)", o.Func, joinExprs(o.Args))
		case Comment:
			d.line(depth, "// %s", o.Text)
		}
	}
}
