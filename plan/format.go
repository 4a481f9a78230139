package plan

import (
	"regexp"
	"strings"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/tree"
)

// Formatter renders one placeholder of a disassembly format.
//
// A placeholder is written <a> or <a, b$mod>: a comma separated list of
// operand names, each optionally followed by a $ modifier that only
// matters for the table lookup. Names that are not operands are passed as
// symbols.
type Formatter struct {
	// Spec is printf-style text added to the current print line, consuming
	// the placeholder values. An empty Spec makes Func a printer of its own:
	// the pending line is flushed and Func is called with the values.
	Spec string

	// Func converts the values into one print argument. Empty passes the
	// values through unchanged.
	Func string
}

// FormatTable maps placeholder text, without the angle brackets, to its
// formatter.
type FormatTable map[string]Formatter

var placeholderRE = regexp.MustCompile(`<(.+?)>|([^<>]+)`)

// Disassemble plans the disassembler: the same decisions and extraction as
// Decode, with leaves printing their format template.
func (p *Planner) Disassemble(root *tree.Node, formats FormatTable) (*Plan, error) {
	return p.plan(root, func(raw *insts.RawInstruction, _ []Var, byName map[string]Var) []Op {
		return append(p.printOps(raw.Format, formats, byName), p.lengthOps(raw)...)
	})
}

func (p *Planner) printOps(format string, formats FormatTable, byName map[string]Var) []Op {
	var (
		ops  []Op
		line strings.Builder
		args []Expr
	)
	flush := func() {
		if line.Len() == 0 {
			return
		}
		ops = append(ops, Call{
			Func: p.cfg.PrintFunc,
			Args: append([]Expr{Str{Value: line.String()}}, args...),
		})
		line.Reset()
		args = nil
	}

	for _, m := range placeholderRE.FindAllStringSubmatch(format, -1) {
		key := m[1]
		f, ok := formats[key]
		if key == "" || !ok {
			line.WriteString(strings.ReplaceAll(m[0], "%", "%%"))
			continue
		}

		values := placeholderValues(key, byName)
		switch {
		case f.Spec == "":
			flush()
			ops = append(ops, Call{Func: f.Func, Args: values})
		case f.Func == "":
			line.WriteString(f.Spec)
			args = append(args, values...)
		default:
			line.WriteString(f.Spec)
			args = append(args, CallExpr{Func: f.Func, Args: values})
		}
	}
	flush()

	return ops
}

func placeholderValues(key string, byName map[string]Var) []Expr {
	var values []Expr
	for _, item := range strings.Split(key, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(item), "$")
		if v, ok := byName[name]; ok {
			values = append(values, v)
		} else {
			values = append(values, Sym{Name: name})
		}
	}
	return values
}
