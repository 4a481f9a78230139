// Package emu executes decoder plans over an instruction stream.
//
// A Machine walks the operations of a plan.Plan the way generated code
// would: it performs the planned reads from Memory, follows the switches and
// reports which handler the plan reached together with the extracted
// operand values.
package emu

const pageBits = 12
const pageSize = 1 << pageBits

// Memory is a sparse byte-addressable memory. Unwritten bytes read as zero.
type Memory struct {
	pages map[uint64]*[pageSize]byte

	// lo and hi bound the bytes written so far; hi is exclusive.
	lo, hi  uint64
	written bool
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[pageSize]byte)}
}

func (m *Memory) page(addr uint64, create bool) *[pageSize]byte {
	p := m.pages[addr>>pageBits]
	if p == nil && create {
		p = new([pageSize]byte)
		m.pages[addr>>pageBits] = p
	}
	return p
}

// Read8 reads the byte at addr.
func (m *Memory) Read8(addr uint64) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&(pageSize-1)]
}

// Write8 writes the byte at addr.
func (m *Memory) Write8(addr uint64, v byte) {
	m.page(addr, true)[addr&(pageSize-1)] = v
	if !m.written {
		m.lo, m.hi, m.written = addr, addr+1, true
		return
	}
	m.lo = min(m.lo, addr)
	m.hi = max(m.hi, addr+1)
}

// ReadBytes reads n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint64, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.Read8(addr + uint64(i))
	}
	return out
}

// LoadProgram copies data into memory at addr.
func (m *Memory) LoadProgram(addr uint64, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint64(i), b)
	}
}

// Bounds returns the lowest written address and the address past the
// highest one. Both are zero for an empty memory.
func (m *Memory) Bounds() (lo, hi uint64) {
	return m.lo, m.hi
}
