package insts

import "fmt"

// FieldError reports a malformed field declaration.
type FieldError struct {
	Mnemonic string
	Field    Field
	Reason   string
}

func (e *FieldError) Error() string {
	if e.Field.Length == 0 && e.Field.Name == "" && e.Field.Value == 0 {
		return fmt.Sprintf("instruction %q: %s", e.Mnemonic, e.Reason)
	}
	return fmt.Sprintf("instruction %q: field %s: %s", e.Mnemonic, e.Field, e.Reason)
}

// MalformedOperandError reports a multi-fragment operand whose part indices
// are not numbered contiguously from 0.
type MalformedOperandError struct {
	Mnemonic string
	Operand  string

	// Part is the first index that is missing or, when Duplicate is set,
	// declared twice.
	Part      int
	Duplicate bool
}

func (e *MalformedOperandError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("duplicate item #%d of field %s in the description of %s",
			e.Part, e.Operand, e.Mnemonic)
	}
	return fmt.Sprintf("missed item #%d of field %s in the description of %s",
		e.Part, e.Operand, e.Mnemonic)
}

// OperandWidthError reports a logical operand wider than a 64-bit value.
type OperandWidthError struct {
	Mnemonic string
	Operand  string
	Width    int
}

func (e *OperandWidthError) Error() string {
	return fmt.Sprintf("the operand %q in the instruction %q is %d bits long, "+
		"more than %d; break it into several operands",
		e.Operand, e.Mnemonic, e.Width, MaxOperandWidth)
}

// InconsistentInstructionLengthError reports expanded encodings whose
// lengths contradict the expected instruction size discipline.
type InconsistentInstructionLengthError struct {
	Expected SizeExpectation
	Min, Max int    // bit lengths
	Shortest string // raw instruction names
	Longest  string
}

func (e *InconsistentInstructionLengthError) Error() string {
	if e.Expected == SizeFixed {
		return fmt.Sprintf("fixed instruction size expected, got lengths from %d (%s) to %d (%s) bits",
			e.Min, e.Shortest, e.Max, e.Longest)
	}
	return fmt.Sprintf("variable instruction size expected, all encodings are %d bits", e.Min)
}

// LayoutError reports an unsupported read layout.
type LayoutError struct {
	ReadSize int
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("unsupported read size %d bits, valid values are %v",
		e.ReadSize, SupportedReadSizes)
}
