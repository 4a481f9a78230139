// Package insts provides instruction-set definitions and their concrete
// bit-level encodings.
//
// An instruction is declared as an ordered sequence of bit-fields (opcode,
// operand and reserved bits). Declarations may contain alternative-encoding
// groups; expansion turns each declaration into one RawInstruction per
// combination, split and laid out for a given read unit size.
//
// Usage:
//
//	add, err := insts.NewInstruction("add", insts.Seq(
//		insts.Opcode(4, 0b0001),
//		insts.Operand(4, "rd"),
//	), insts.WithFormat("add <rd>"))
//	exp := insts.NewExpander(insts.Layout{ReadSize: 8})
//	raws, err := exp.Expand(add)
//	fmt.Println(raws[0].Canonical()) // 0001xxxx
package insts

// Instruction is one declared instruction of an instruction set.
// It is immutable once created.
type Instruction struct {
	mnemonic string
	elements []Element
	comment  string
	format   string
	branch   bool
}

// InstructionOption configures optional attributes of an Instruction.
type InstructionOption func(*Instruction)

// WithComment sets the human-readable comment of the instruction.
func WithComment(comment string) InstructionOption {
	return func(i *Instruction) {
		i.comment = comment
	}
}

// WithFormat sets the disassembly format template. Placeholders are written
// as <name>. The mnemonic is used when no format is given.
func WithFormat(format string) InstructionOption {
	return func(i *Instruction) {
		i.format = format
	}
}

// AsBranch marks the instruction as a control transfer.
func AsBranch() InstructionOption {
	return func(i *Instruction) {
		i.branch = true
	}
}

// NewInstruction declares an instruction. It checks field widths and values
// and returns a *FieldError for malformed declarations.
func NewInstruction(
	mnemonic string,
	elems []Element,
	opts ...InstructionOption,
) (*Instruction, error) {
	if mnemonic == "" {
		return nil, &FieldError{Reason: "empty mnemonic"}
	}
	if len(elems) == 0 {
		return nil, &FieldError{Mnemonic: mnemonic, Reason: "no fields"}
	}
	if err := checkElements(mnemonic, elems); err != nil {
		return nil, err
	}

	inst := &Instruction{
		mnemonic: mnemonic,
		elements: append([]Element(nil), elems...),
	}
	for _, opt := range opts {
		opt(inst)
	}
	if inst.format == "" {
		inst.format = mnemonic
	}

	return inst, nil
}

// MustInstruction is like NewInstruction but panics on error. It is meant
// for statically known instruction tables.
func MustInstruction(
	mnemonic string,
	elems []Element,
	opts ...InstructionOption,
) *Instruction {
	inst, err := NewInstruction(mnemonic, elems, opts...)
	if err != nil {
		panic(err)
	}
	return inst
}

// Mnemonic returns the instruction mnemonic.
func (i *Instruction) Mnemonic() string {
	return i.mnemonic
}

// Elements returns a copy of the declared element sequence.
func (i *Instruction) Elements() []Element {
	return append([]Element(nil), i.elements...)
}

// Comment returns the comment, or "" if none was declared.
func (i *Instruction) Comment() string {
	return i.comment
}

// Format returns the disassembly format template.
func (i *Instruction) Format() string {
	return i.format
}

// Branch reports whether the instruction transfers control.
func (i *Instruction) Branch() bool {
	return i.branch
}

// Describe names the instruction for diagnostics: the comment when present,
// the mnemonic otherwise.
func (i *Instruction) Describe() string {
	if i.comment != "" {
		return i.comment
	}
	return i.mnemonic
}

// Len returns the bit length of the instruction when it has no alternative
// groups, and otherwise the length of the encoding that takes the first
// choice of every group.
func (i *Instruction) Len() int {
	n := 0
	enumerate(i.elements, nil, func(fields []Field) bool {
		for _, f := range fields {
			n += f.Length
		}
		return false
	})
	return n
}

func checkElements(mnemonic string, elems []Element) error {
	for _, el := range elems {
		switch e := el.(type) {
		case Field:
			if err := e.check(); err != nil {
				err.Mnemonic = mnemonic
				return err
			}
		case Alternatives:
			if len(e) == 0 {
				return &FieldError{Mnemonic: mnemonic, Reason: "empty alternative group"}
			}
			for _, seq := range e {
				if err := checkElements(mnemonic, seq); err != nil {
					return err
				}
			}
		default:
			return &FieldError{Mnemonic: mnemonic, Reason: "unknown element type"}
		}
	}
	return nil
}
