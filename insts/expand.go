package insts

import (
	"fmt"
	"sort"
)

// Namer hands out unique raw instruction names. Names are the mnemonic
// followed by an ordinal counted per mnemonic.
type Namer struct {
	counts map[string]int
}

// NewNamer creates an empty naming context.
func NewNamer() *Namer {
	return &Namer{counts: make(map[string]int)}
}

// Next returns the next unused name for mnemonic.
func (n *Namer) Next(mnemonic string) string {
	c := n.counts[mnemonic]
	n.counts[mnemonic] = c + 1
	return fmt.Sprintf("%s_%d", mnemonic, c)
}

// Expander turns declared instructions into raw instructions for a layout.
// An Expander is not safe for concurrent use.
type Expander struct {
	layout Layout
	namer  *Namer
}

// NewExpander creates an Expander with a fresh naming context.
func NewExpander(layout Layout) *Expander {
	return &Expander{layout: layout, namer: NewNamer()}
}

// Layout returns the layout the expander lays encodings out for.
func (e *Expander) Layout() Layout {
	return e.layout
}

// Expand returns one raw instruction per combination of the alternative
// groups of inst, in depth-first order.
func (e *Expander) Expand(inst *Instruction) ([]*RawInstruction, error) {
	if err := e.layout.Validate(); err != nil {
		return nil, err
	}

	var (
		raws []*RawInstruction
		err  error
	)
	enumerate(inst.elements, nil, func(fields []Field) bool {
		var frags []Fragment
		frags, err = e.layoutFields(inst.mnemonic, fields)
		if err != nil {
			return false
		}
		raws = append(raws, NewRawInstruction(e.namer.Next(inst.mnemonic), inst, frags))
		return true
	})
	if err != nil {
		return nil, err
	}

	return raws, nil
}

// ExpandAll expands every instruction and checks the resulting lengths
// against expect.
func (e *Expander) ExpandAll(
	instrs []*Instruction,
	expect SizeExpectation,
) ([]*RawInstruction, error) {
	var all []*RawInstruction
	for _, inst := range instrs {
		raws, err := e.Expand(inst)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", inst.Mnemonic(), err)
		}
		all = append(all, raws...)
	}

	if err := CheckSizes(all, expect); err != nil {
		return nil, err
	}
	return all, nil
}

// enumerate walks every combination of alternatives. emit returns false to
// stop the walk; enumerate then returns false as well.
func enumerate(elems []Element, prefix []Field, emit func([]Field) bool) bool {
	if len(elems) == 0 {
		return emit(prefix)
	}

	switch el := elems[0].(type) {
	case Field:
		return enumerate(elems[1:], append(prefix[:len(prefix):len(prefix)], el), emit)
	case Alternatives:
		for _, alt := range el {
			joined := make([]Element, 0, len(alt)+len(elems)-1)
			joined = append(joined, alt...)
			joined = append(joined, elems[1:]...)
			if !enumerate(joined, prefix, emit) {
				return false
			}
		}
	}
	return true
}

type operandSpan struct {
	low, high int
}

// operandSpans numbers the parts of every multi-part operand and returns
// the logical bit span of each field index.
func operandSpans(mnemonic string, fields []Field) (map[int]operandSpan, error) {
	byName := make(map[string][]int)
	var names []string
	for i, f := range fields {
		if f.Kind != KindOperand {
			continue
		}
		if _, ok := byName[f.Name]; !ok {
			names = append(names, f.Name)
		}
		byName[f.Name] = append(byName[f.Name], i)
	}

	spans := make(map[int]operandSpan)
	for _, name := range names {
		idx := byName[name]
		sort.SliceStable(idx, func(a, b int) bool {
			return fields[idx[a]].Part < fields[idx[b]].Part
		})

		low := 0
		for j, fi := range idx {
			f := fields[fi]
			if f.Part != j {
				return nil, &MalformedOperandError{
					Mnemonic:  mnemonic,
					Operand:   name,
					Part:      min(f.Part, j),
					Duplicate: f.Part < j,
				}
			}
			spans[fi] = operandSpan{low: low, high: low + f.Length - 1}
			low += f.Length
		}

		if low > MaxOperandWidth {
			return nil, &OperandWidthError{Mnemonic: mnemonic, Operand: name, Width: low}
		}
	}
	return spans, nil
}

// layoutFields places fields at absolute offsets and splits operand fields
// that cross a read unit boundary.
func (e *Expander) layoutFields(mnemonic string, fields []Field) ([]Fragment, error) {
	spans, err := operandSpans(mnemonic, fields)
	if err != nil {
		return nil, err
	}

	rs := e.layout.ReadSize
	var frags []Fragment
	offset := 0
	for i, f := range fields {
		switch {
		case f.Kind.Concrete():
			frags = append(frags, Fragment{
				Kind:   f.Kind,
				Offset: offset,
				Length: f.Length,
				Bits:   f.Bits(),
			})
		default:
			frags = append(frags, splitOperand(f, offset, spans[i], rs, e.layout.DescBigEndian)...)
		}
		offset += f.Length
	}
	return frags, nil
}

// splitOperand cuts an operand field at read unit boundaries. In a
// big-endian description the stream-earlier piece holds the more
// significant bits; in a little-endian one the later unit does.
func splitOperand(f Field, offset int, span operandSpan, rs int, bigEndian bool) []Fragment {
	var pieces []Fragment
	cur, rem := offset, f.Length
	for rem > 0 {
		end := (cur/rs + 1) * rs
		n := min(end-cur, rem)
		pieces = append(pieces, Fragment{
			Kind:   KindOperand,
			Offset: cur,
			Length: n,
			Name:   f.Name,
		})
		cur += n
		rem -= n
	}

	high := span.high
	assign := func(p *Fragment) {
		p.High = high
		p.Low = high - p.Length + 1
		high -= p.Length
	}
	if bigEndian {
		for i := range pieces {
			assign(&pieces[i])
		}
	} else {
		for i := len(pieces) - 1; i >= 0; i-- {
			assign(&pieces[i])
		}
	}
	return pieces
}
