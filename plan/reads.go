package plan

import (
	"fmt"

	"github.com/sarchlab/decgen/insts"
)

// ReadWidthOverflowError reports a read wider than insts.MaxReadBytes.
type ReadWidthOverflowError struct {
	Offset int // bytes from the instruction start
	Width  int // bytes, after rounding to read units

	// Instruction is the raw instruction being completed, or "" when the
	// read feeds a decision node.
	Instruction string
}

func (e *ReadWidthOverflowError) Error() string {
	where := "decision node"
	if e.Instruction != "" {
		where = e.Instruction
	}
	return fmt.Sprintf("%s: read of %d bytes at offset %d exceeds the %d-byte limit",
		where, e.Width, e.Offset, insts.MaxReadBytes)
}

// pathState is what has been read along a root-to-node path. Values are
// copied into child paths; reads must be appended with a full slice
// expression so siblings never share a backing array.
type pathState struct {
	reads   []Read
	already int // bytes
}

// ensure emits the reads needed to cover the first endBit bits.
func (p *Planner) ensure(st pathState, endBit int, inst string) ([]Op, pathState, error) {
	needed := (endBit+7)/8 - st.already
	if needed <= 0 {
		return nil, st, nil
	}

	width := p.cfg.RoundBytes(needed)
	if width > insts.MaxReadBytes {
		return nil, st, &ReadWidthOverflowError{
			Offset:      st.already,
			Width:       width,
			Instruction: inst,
		}
	}

	rd := Read{
		Var:    fmt.Sprintf("r%d_%d", st.already, width),
		Width:  width,
		Offset: st.already,
		Swap:   p.cfg.ByteSwap(),
	}
	st.reads = append(st.reads[:len(st.reads):len(st.reads)], rd)
	st.already += width

	return []Op{Declare{Var: rd.Var, Width: width * 8}, rd}, st, nil
}
