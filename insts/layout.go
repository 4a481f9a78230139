package insts

// SupportedReadSizes lists the read unit sizes, in bits, a Layout may use.
var SupportedReadSizes = []int{8, 16, 32, 64}

// MaxOperandWidth is the widest logical operand, in bits.
const MaxOperandWidth = 64

// MaxReadBytes is the widest single read, in bytes.
const MaxReadBytes = 8

// Layout describes how an instruction stream is fetched.
//
// The stream is a sequence of read units of ReadSize bits. Within a unit,
// description bit positions run from the most significant bit down. Units
// are stored in the description byte order.
type Layout struct {
	// ReadSize is the minimal read unit in bits.
	ReadSize int

	// DescBigEndian is the byte order of the description.
	DescBigEndian bool

	// TargetBigEndian is the byte order of the machine running the decoder.
	TargetBigEndian bool
}

// Validate checks that the read size is supported.
func (l Layout) Validate() error {
	for _, s := range SupportedReadSizes {
		if l.ReadSize == s {
			return nil
		}
	}
	return &LayoutError{ReadSize: l.ReadSize}
}

// ByteSwap reports whether reads must be byte-swapped before extraction.
func (l Layout) ByteSwap() bool {
	return l.DescBigEndian != l.TargetBigEndian
}

// UnitBytes returns the read unit size in bytes.
func (l Layout) UnitBytes() int {
	return l.ReadSize / 8
}

// RoundBytes rounds n bytes up to a whole number of read units.
func (l Layout) RoundBytes(n int) int {
	u := l.UnitBytes()
	if u <= 0 {
		return n
	}
	return (n + u - 1) / u * u
}
