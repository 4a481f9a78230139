package insts

import (
	"fmt"
	"strings"
)

// ConcreteBits fills the operand positions of the canonical string with the
// given operand values.
func (r *RawInstruction) ConcreteBits(values map[string]uint64) (string, error) {
	for _, name := range r.Operands() {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("%s: missing value for operand %q", r.Name, name)
		}
		if w := r.OperandWidth(name); w < 64 && v>>uint(w) != 0 {
			return "", fmt.Errorf("%s: value 0x%x does not fit operand %q of %d bits",
				r.Name, v, name, w)
		}
	}

	var sb strings.Builder
	sb.Grow(r.Len())
	for _, f := range r.Fragments {
		if f.Kind.Concrete() {
			sb.WriteString(f.Bits)
			continue
		}
		part := (values[f.Name] >> uint(f.Low)) & f.Mask()
		sb.WriteString(fmt.Sprintf("%0*b", f.Length, part))
	}
	return sb.String(), nil
}

// Encode assembles the instruction bytes for the given operand values in
// the description byte order.
func (r *RawInstruction) Encode(values map[string]uint64, layout Layout) ([]byte, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	bits, err := r.ConcreteBits(values)
	if err != nil {
		return nil, err
	}
	return PackBits(bits, layout), nil
}

// PackBits lays a concrete bit string out as bytes. The string is cut into
// read units, padded with zeros, and each unit is stored in the description
// byte order.
func PackBits(bits string, layout Layout) []byte {
	rs := layout.ReadSize
	ub := layout.UnitBytes()
	units := (len(bits) + rs - 1) / rs
	out := make([]byte, 0, units*ub)

	for u := 0; u < units; u++ {
		var v uint64
		for i := 0; i < rs; i++ {
			v <<= 1
			p := u*rs + i
			if p < len(bits) && bits[p] == '1' {
				v |= 1
			}
		}
		out = append(out, unitBytes(v, ub, layout.DescBigEndian)...)
	}
	return out
}

// UnpackBits is the inverse of PackBits for whole units.
func UnpackBits(data []byte, layout Layout) string {
	rs := layout.ReadSize
	ub := layout.UnitBytes()
	var sb strings.Builder
	for off := 0; off+ub <= len(data); off += ub {
		var v uint64
		for i := 0; i < ub; i++ {
			b := data[off+i]
			if !layout.DescBigEndian {
				b = data[off+ub-1-i]
			}
			v = v<<8 | uint64(b)
		}
		sb.WriteString(fmt.Sprintf("%0*b", rs, v))
	}
	return sb.String()
}

func unitBytes(v uint64, n int, bigEndian bool) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := uint(8 * (n - 1 - i))
		if !bigEndian {
			shift = uint(8 * i)
		}
		b[i] = byte(v >> shift)
	}
	return b
}
