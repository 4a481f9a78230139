package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/decgen/insts"
)

// extract returns the value of a bit window given the reads on a path.
// The window is cut where it leaves a read and, for little-endian
// descriptions, a read unit; the pieces are joined most significant first.
func (p *Planner) extract(reads []Read, w insts.Window) Expr {
	var acc Expr
	off, rem := w.Offset, w.Length
	for rem > 0 {
		r := containing(reads, off)
		local := off - r.Offset*8
		n := min(rem, r.Width*8-local)
		if !p.cfg.DescBigEndian {
			n = min(n, (local/p.cfg.ReadSize+1)*p.cfg.ReadSize-local)
		}

		piece := Expr(And{X: shr(Var{Name: r.Var}, p.shift(r.Width, local, n)), Y: Const{Value: lowMask(n)}})
		if acc == nil {
			acc = piece
		} else {
			acc = Or{X: Shl{X: acc, N: n}, Y: piece}
		}
		off += n
		rem -= n
	}
	return acc
}

// shift returns the right shift that aligns n bits at bit position local of
// a read of width bytes. Reads are in description byte order once swapped.
func (p *Planner) shift(width, local, n int) int {
	if p.cfg.DescBigEndian {
		return width*8 - local - n
	}
	rs := p.cfg.ReadSize
	unit := local / rs
	return unit*rs + rs - local%rs - n
}

func containing(reads []Read, bit int) Read {
	for _, r := range reads {
		if r.Offset*8 <= bit && bit < (r.Offset+r.Width)*8 {
			return r
		}
	}
	panic("plan: bit not covered by any read")
}

func shr(x Expr, n int) Expr {
	if n == 0 {
		return x
	}
	return Shr{X: x, N: n}
}

func shl(x Expr, n int) Expr {
	if n == 0 {
		return x
	}
	return Shl{X: x, N: n}
}

func lowMask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// Diagnostic records a questionable input that did not stop planning.
type Diagnostic struct {
	Instruction string
	Message     string
}

// scope hands out identifiers inside one leaf body.
type scope struct {
	p    *Planner
	raw  *insts.RawInstruction
	used map[string]bool
	out  *Plan
}

func (p *Planner) newScope(raw *insts.RawInstruction, st pathState, out *Plan) *scope {
	s := &scope{p: p, raw: raw, used: make(map[string]bool), out: out}
	for _, r := range st.reads {
		s.used[r.Var] = true
	}
	for _, v := range []string{p.cfg.LengthVar, p.cfg.BranchVar} {
		if v != "" {
			s.used[v] = true
		}
	}
	return s
}

// claim returns a free identifier derived from base. A taken identifier
// gets a numeric suffix and a diagnostic.
func (s *scope) claim(base string) string {
	ident := Ident(base)
	if !s.used[ident] {
		s.used[ident] = true
		return ident
	}

	n := 1
	for s.used[identSuffix(ident, n)] {
		n++
	}
	renamed := identSuffix(ident, n)
	s.used[renamed] = true

	d := Diagnostic{
		Instruction: s.raw.Name,
		Message:     "variable " + ident + " for " + base + " already taken, using " + renamed,
	}
	s.out.Diagnostics = append(s.out.Diagnostics, d)
	s.p.logger.WithFields(logrus.Fields{
		"instruction": s.raw.Name,
		"name":        base,
		"renamed":     renamed,
	}).Warn("variable name collision")
	return renamed
}

func identSuffix(ident string, n int) string {
	return ident + "_" + strconv.Itoa(n)
}

// Ident turns a name into a lower-case identifier.
func Ident(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case unicode.IsLetter(r):
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// operands emits the extraction of every operand of raw and returns the
// operand variables in order of first appearance.
func (p *Planner) operands(raw *insts.RawInstruction, st pathState, sc *scope) ([]Op, []Var, map[string]Var) {
	names := raw.Operands()
	byName := make(map[string]Var, len(names))
	vars := make([]Var, len(names))
	for i, name := range names {
		vars[i] = Var{Name: sc.claim(name)}
		byName[name] = vars[i]
	}

	parts := make(map[string][]insts.Fragment)
	for _, f := range raw.Fragments {
		if f.Kind == insts.KindOperand {
			parts[f.Name] = append(parts[f.Name], f)
		}
	}

	var ops []Op
	fragVars := make(map[insts.Fragment]string)
	for _, f := range raw.UnitOrder(p.cfg.ReadSize, p.cfg.ByteSwap()) {
		if f.Kind != insts.KindOperand {
			continue
		}
		value := p.extract(st.reads, f.Window())
		if len(parts[f.Name]) == 1 {
			v := byName[f.Name].Name
			ops = append(ops, Declare{Var: v, Width: raw.OperandWidth(f.Name)}, Assign{Var: v, Value: value})
			continue
		}
		fv := sc.claim(fmt.Sprintf("%s_%d_%d", f.Name, f.High, f.Low))
		fragVars[f] = fv
		ops = append(ops, Declare{Var: fv, Width: f.Length}, Assign{Var: fv, Value: value})
	}

	for _, name := range names {
		frags := parts[name]
		if len(frags) < 2 {
			continue
		}
		sort.Slice(frags, func(i, j int) bool { return frags[i].Low < frags[j].Low })

		v := byName[name].Name
		ops = append(ops, Declare{Var: v, Width: raw.OperandWidth(name)})
		for i, f := range frags {
			part := shl(Var{Name: fragVars[f]}, f.Low)
			if i == 0 {
				ops = append(ops, Assign{Var: v, Value: part})
			} else {
				ops = append(ops, Assign{Var: v, Value: Or{X: Var{Name: v}, Y: part}})
			}
		}
	}

	return ops, vars, byName
}
