package insts

import "fmt"

// FieldKind identifies the role of a bit-field.
type FieldKind uint8

// Field kinds.
const (
	KindOpcode   FieldKind = iota // fixed value, identifies the instruction
	KindOperand                   // named, variable value
	KindReserved                  // fixed value, no decoding role
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindOpcode:
		return "opcode"
	case KindOperand:
		return "operand"
	case KindReserved:
		return "reserved"
	default:
		return fmt.Sprintf("FieldKind(%d)", uint8(k))
	}
}

// Concrete reports whether fields of this kind carry literal bits.
func (k FieldKind) Concrete() bool {
	return k == KindOpcode || k == KindReserved
}

// Element is an item of an instruction declaration: a Field or an
// Alternatives group.
type Element interface {
	isElement()
}

// Field is one declared bit-field.
type Field struct {
	Kind   FieldKind
	Length int // in bits

	// Value is the literal value of opcode and reserved fields.
	Value uint64

	// Name and Part identify an operand fragment. Fragments of one operand
	// are numbered from 0 (least significant) without gaps.
	Name string
	Part int
}

func (Field) isElement() {}

// Opcode declares a fixed-value opcode field.
func Opcode(length int, value uint64) Field {
	return Field{Kind: KindOpcode, Length: length, Value: value}
}

// Operand declares a single-fragment operand field.
func Operand(length int, name string) Field {
	return Field{Kind: KindOperand, Length: length, Name: name}
}

// OperandPart declares fragment number part of a multi-fragment operand.
func OperandPart(length int, name string, part int) Field {
	return Field{Kind: KindOperand, Length: length, Name: name, Part: part}
}

// Reserved declares a fixed-width field with a conventional value.
func Reserved(length int, value uint64) Field {
	return Field{Kind: KindReserved, Length: length, Value: value}
}

// Bits renders the literal value zero-padded to the field width. It returns
// "" for operands.
func (f Field) Bits() string {
	if !f.Kind.Concrete() {
		return ""
	}
	return fmt.Sprintf("%0*b", f.Length, f.Value)
}

// String returns a declaration-like rendering of the field.
func (f Field) String() string {
	switch f.Kind {
	case KindOperand:
		if f.Part != 0 {
			return fmt.Sprintf("Operand(%d, %q, %d)", f.Length, f.Name, f.Part)
		}
		return fmt.Sprintf("Operand(%d, %q)", f.Length, f.Name)
	case KindReserved:
		return fmt.Sprintf("Reserved(%d, 0b%s)", f.Length, f.Bits())
	default:
		return fmt.Sprintf("Opcode(%d, 0b%s)", f.Length, f.Bits())
	}
}

func (f Field) check() *FieldError {
	if f.Length <= 0 {
		return &FieldError{Field: f, Reason: "non-positive length"}
	}
	switch f.Kind {
	case KindOpcode, KindReserved:
		if f.Length > 64 {
			return &FieldError{Field: f, Reason: "literal field wider than 64 bits"}
		}
		if f.Length < 64 && f.Value>>uint(f.Length) != 0 {
			return &FieldError{Field: f, Reason: "value does not fit the field width"}
		}
	case KindOperand:
		if f.Name == "" {
			return &FieldError{Field: f, Reason: "operand without a name"}
		}
		if f.Part < 0 {
			return &FieldError{Field: f, Reason: "negative part index"}
		}
	default:
		return &FieldError{Field: f, Reason: "unknown field kind"}
	}
	return nil
}

// Alternatives is a group of mutually exclusive element sequences. Each
// alternative continues with the elements that follow the group.
type Alternatives [][]Element

func (Alternatives) isElement() {}

// Seq builds an element sequence.
func Seq(elems ...Element) []Element {
	return elems
}

// Alt builds an alternative-encoding group.
func Alt(seqs ...[]Element) Alternatives {
	return Alternatives(seqs)
}
