package insts

import "fmt"

// CommonOpcode returns the maximal runs of bit positions that are concrete
// in every member, scanning left to right up to the shortest member. A run
// does not imply the members agree on its value.
func CommonOpcode(raws []*RawInstruction) []Window {
	if len(raws) == 0 {
		return nil
	}

	strs := make([]string, len(raws))
	n := -1
	for i, r := range raws {
		strs[i] = r.Canonical()
		if n < 0 || len(strs[i]) < n {
			n = len(strs[i])
		}
	}

	var runs []Window
	start := -1
	for pos := 0; pos < n; pos++ {
		concrete := true
		for _, s := range strs {
			if s[pos] == 'x' {
				concrete = false
				break
			}
		}

		switch {
		case concrete && start < 0:
			start = pos
		case !concrete && start >= 0:
			runs = append(runs, Window{Offset: start, Length: pos - start})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, Window{Offset: start, Length: n - start})
	}

	return runs
}

// MatchBits reports whether the concrete bit string bits fits pattern, a
// {0,1,x} string of the same length.
func MatchBits(pattern, bits string) bool {
	if len(pattern) != len(bits) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != 'x' && pattern[i] != bits[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether some bit string matches both encodings over the
// length of the shorter one.
func Overlaps(a, b *RawInstruction) bool {
	sa, sb := a.Canonical(), b.Canonical()
	n := min(len(sa), len(sb))
	for i := 0; i < n; i++ {
		if sa[i] != 'x' && sb[i] != 'x' && sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// SizeExpectation is the instruction size discipline asserted by a caller.
type SizeExpectation int

// Size expectations.
const (
	SizeAny SizeExpectation = iota
	SizeFixed
	SizeVariable
)

// String returns the expectation name.
func (s SizeExpectation) String() string {
	switch s {
	case SizeFixed:
		return "fixed"
	case SizeVariable:
		return "variable"
	default:
		return "any"
	}
}

// ParseSizeExpectation is the inverse of SizeExpectation.String. An empty
// string means SizeAny.
func ParseSizeExpectation(s string) (SizeExpectation, error) {
	switch s {
	case "", "any":
		return SizeAny, nil
	case "fixed":
		return SizeFixed, nil
	case "variable":
		return SizeVariable, nil
	default:
		return SizeAny, fmt.Errorf("unknown instruction size %q", s)
	}
}

// Sizes summarizes the encoding lengths of an instruction set.
type Sizes struct {
	Min, Max int // bits
	Shortest string
	Longest  string
}

// Fixed reports whether every encoding has the same length.
func (s Sizes) Fixed() bool {
	return s.Min == s.Max
}

// SizeInfo returns the length range of raws.
func SizeInfo(raws []*RawInstruction) Sizes {
	var s Sizes
	for i, r := range raws {
		n := r.Len()
		if i == 0 || n < s.Min {
			s.Min, s.Shortest = n, r.Name
		}
		if i == 0 || n > s.Max {
			s.Max, s.Longest = n, r.Name
		}
	}
	return s
}

// CheckSizes verifies raws against an expectation.
func CheckSizes(raws []*RawInstruction, expect SizeExpectation) error {
	if len(raws) == 0 || expect == SizeAny {
		return nil
	}

	s := SizeInfo(raws)
	if (expect == SizeFixed && !s.Fixed()) ||
		(expect == SizeVariable && s.Fixed() && len(raws) > 1) {
		return &InconsistentInstructionLengthError{
			Expected: expect,
			Min:      s.Min,
			Max:      s.Max,
			Shortest: s.Shortest,
			Longest:  s.Longest,
		}
	}
	return nil
}
