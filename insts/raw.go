package insts

import (
	"fmt"
	"strings"
)

// Window is a run of bit positions in a canonical string.
type Window struct {
	Offset int
	Length int
}

// End returns the first position past the window.
func (w Window) End() int {
	return w.Offset + w.Length
}

// String renders the window as [offset+length].
func (w Window) String() string {
	return fmt.Sprintf("[%d+%d]", w.Offset, w.Length)
}

// Fragment is one physical piece of a raw instruction.
type Fragment struct {
	Kind   FieldKind
	Offset int // absolute bit offset in the instruction
	Length int

	// Bits holds the literal bits of opcode and reserved fragments.
	Bits string

	// Name, High and Low locate an operand fragment inside its logical
	// operand. High and Low are inclusive bit indices.
	Name string
	High int
	Low  int
}

// Window returns the bit window the fragment occupies.
func (f Fragment) Window() Window {
	return Window{Offset: f.Offset, Length: f.Length}
}

// Mask returns the right-aligned mask of the fragment width.
func (f Fragment) Mask() uint64 {
	return lowMask(f.Length)
}

// RawInstruction is one concrete encoding of an instruction.
type RawInstruction struct {
	Name     string // unique: mnemonic and ordinal
	Mnemonic string
	Comment  string
	Format   string
	Branch   bool

	Fragments []Fragment

	canonical string
}

// NewRawInstruction builds a raw instruction from laid-out fragments.
// Fragments must be contiguous and sorted by offset.
func NewRawInstruction(
	name string,
	inst *Instruction,
	frags []Fragment,
) *RawInstruction {
	r := &RawInstruction{
		Name:      name,
		Mnemonic:  inst.Mnemonic(),
		Comment:   inst.Comment(),
		Format:    inst.Format(),
		Branch:    inst.Branch(),
		Fragments: frags,
	}
	r.canonical = renderCanonical(frags)
	return r
}

func renderCanonical(frags []Fragment) string {
	var sb strings.Builder
	for _, f := range frags {
		if f.Kind.Concrete() {
			sb.WriteString(f.Bits)
		} else {
			sb.WriteString(strings.Repeat("x", f.Length))
		}
	}
	return sb.String()
}

// Canonical returns the {0,1,x} rendering of the encoding.
func (r *RawInstruction) Canonical() string {
	if r.canonical == "" {
		return renderCanonical(r.Fragments)
	}
	return r.canonical
}

// Len returns the encoding length in bits.
func (r *RawInstruction) Len() int {
	return len(r.Canonical())
}

// Bytes returns the encoding length in whole bytes.
func (r *RawInstruction) Bytes() int {
	return (r.Len() + 7) / 8
}

// OpcodePart returns the canonical bits inside w. It reports false when the
// window is not fully concrete for this encoding or extends past its end.
func (r *RawInstruction) OpcodePart(w Window) (string, bool) {
	s := r.Canonical()
	if w.Length <= 0 || w.Offset < 0 || w.End() > len(s) {
		return "", false
	}
	part := s[w.Offset:w.End()]
	if strings.IndexByte(part, 'x') >= 0 {
		return "", false
	}
	return part, true
}

// HasOpcode reports whether w is fully concrete for this encoding.
func (r *RawInstruction) HasOpcode(w Window) bool {
	_, ok := r.OpcodePart(w)
	return ok
}

// Equal reports whether two raw instructions are the same encoding.
func (r *RawInstruction) Equal(o *RawInstruction) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Name == o.Name
}

// Describe names the encoding for diagnostics: the comment when present,
// the mnemonic otherwise.
func (r *RawInstruction) Describe() string {
	if r.Comment != "" {
		return r.Comment
	}
	return r.Mnemonic
}

// Operands returns the logical operand names in order of first appearance.
func (r *RawInstruction) Operands() []string {
	var names []string
	seen := make(map[string]bool)
	for _, f := range r.Fragments {
		if f.Kind != KindOperand || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		names = append(names, f.Name)
	}
	return names
}

// OperandWidth returns the width in bits of the named logical operand.
func (r *RawInstruction) OperandWidth(name string) int {
	w := 0
	for _, f := range r.Fragments {
		if f.Kind == KindOperand && f.Name == name && f.High+1 > w {
			w = f.High + 1
		}
	}
	return w
}

// UnitOrder returns the fragments grouped by read unit. With byteSwap the
// order inside each unit is reversed.
func (r *RawInstruction) UnitOrder(readSize int, byteSwap bool) []Fragment {
	out := make([]Fragment, 0, len(r.Fragments))
	if !byteSwap || readSize <= 0 {
		return append(out, r.Fragments...)
	}

	start := 0
	for start < len(r.Fragments) {
		unit := r.Fragments[start].Offset / readSize
		end := start
		for end < len(r.Fragments) && r.Fragments[end].Offset/readSize == unit {
			end++
		}
		for i := end - 1; i >= start; i-- {
			out = append(out, r.Fragments[i])
		}
		start = end
	}
	return out
}

// String returns the name and canonical string.
func (r *RawInstruction) String() string {
	return r.Name + " " + r.Canonical()
}

func lowMask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}
