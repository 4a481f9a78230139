// Package loader reads instruction set descriptions and the binaries that
// are decoded with them.
package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment of a binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program is a binary ready to be decoded.
type Program struct {
	// EntryPoint is the address where execution begins.
	EntryPoint uint64
	// Machine is the ELF machine type. It is EM_NONE for raw images.
	Machine elf.Machine
	// BigEndian is the byte order recorded in the ELF header.
	BigEndian bool
	// Segments contains all loadable segments.
	Segments []Segment
}

// Code returns the executable segments.
func (p *Program) Code() []Segment {
	var out []Segment
	for _, s := range p.Segments {
		if s.Flags&SegmentFlagExecute != 0 {
			out = append(out, s)
		}
	}
	return out
}

// Load parses an ELF binary of any class and machine and returns its
// loadable segments.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog := &Program{
		EntryPoint: f.Entry,
		Machine:    f.Machine,
		BigEndian:  f.ByteOrder == binary.BigEndian,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadRaw reads a flat code image and places it at addr as a single
// executable segment.
func LoadRaw(path string, addr uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw image: %w", err)
	}

	return &Program{
		EntryPoint: addr,
		Machine:    elf.EM_NONE,
		Segments: []Segment{{
			VirtAddr: addr,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagExecute | SegmentFlagRead,
		}},
	}, nil
}

// IsELF reports whether the file at path starts with the ELF magic.
func IsELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(elf.ELFMAG))
	if _, err := io.ReadFull(f, magic); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}
	return string(magic) == elf.ELFMAG, nil
}
