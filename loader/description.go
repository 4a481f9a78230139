package loader

import (
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/plan"
)

// SupportedVersions is the range of description versions LoadDescription
// accepts.
const SupportedVersions = ">= 1.0, < 2.0"

// VersionError reports a description whose version is missing, malformed or
// outside SupportedVersions.
type VersionError struct {
	Version    string
	Constraint string
	Err        error
}

func (e *VersionError) Error() string {
	if e.Version == "" {
		return "description has no version"
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid description version %q: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("description version %s does not satisfy %s", e.Version, e.Constraint)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// Description is a loaded instruction set description.
type Description struct {
	// Version is the description format version.
	Version *semver.Version

	// ReadSize is the read unit size in bits, and BigEndian the byte
	// order of the description.
	ReadSize  int
	BigEndian bool

	// Size is the instruction size discipline the description asserts.
	Size insts.SizeExpectation

	Instructions []*insts.Instruction

	// Formats maps disassembly placeholders to formatters.
	Formats plan.FormatTable
}

// Layout returns the fetch layout for a decoder running on a machine of the
// given byte order.
func (d *Description) Layout(targetBigEndian bool) insts.Layout {
	return insts.Layout{
		ReadSize:        d.ReadSize,
		DescBigEndian:   d.BigEndian,
		TargetBigEndian: targetBigEndian,
	}
}

// LoadDescription reads a YAML instruction set description.
//
// A description looks like
//
//	version: "1.0"
//	read_size: 16
//	big_endian: true
//	size: variable
//	instructions:
//	  - mnemonic: addi
//	    format: "addi r<rd>, <imm>"
//	    fields:
//	      - opcode: "000001"
//	      - operand: {name: rd, length: 5}
//	      - operand: {name: imm, length: 5}
//	  - mnemonic: ld
//	    fields:
//	      - opcode: "1000"
//	      - alt:
//	          - [{opcode: "0"}, {operand: {name: r, length: 3}}]
//	          - [{opcode: "1"}, {operand: {name: r, length: 3}}, {reserved: "00000000"}]
//	formats:
//	  rd: {spec: "%d"}
//	  imm: {spec: "%#x"}
//
// Opcode and reserved fields are given as bit strings; their length is the
// string length. Split operands carry a part index.
func LoadDescription(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read description file: %w", err)
	}

	d, err := ParseDescription(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load description %s: %w", path, err)
	}
	return d, nil
}

// ParseDescription parses a YAML instruction set description.
func ParseDescription(data []byte) (*Description, error) {
	var file descriptionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}

	version, err := checkVersion(file.Version)
	if err != nil {
		return nil, err
	}

	size, err := insts.ParseSizeExpectation(file.Size)
	if err != nil {
		return nil, err
	}

	d := &Description{
		Version:   version,
		ReadSize:  file.ReadSize,
		BigEndian: file.BigEndian,
		Size:      size,
		Formats:   make(plan.FormatTable, len(file.Formats)),
	}
	if err := d.Layout(false).Validate(); err != nil {
		return nil, err
	}

	for _, entry := range file.Instructions {
		inst, err := entry.instruction()
		if err != nil {
			return nil, err
		}
		d.Instructions = append(d.Instructions, inst)
	}

	for key, f := range file.Formats {
		d.Formats[key] = plan.Formatter{Spec: f.Spec, Func: f.Func}
	}

	return d, nil
}

func checkVersion(v string) (*semver.Version, error) {
	if v == "" {
		return nil, &VersionError{Constraint: SupportedVersions}
	}

	version, err := semver.NewVersion(v)
	if err != nil {
		return nil, &VersionError{Version: v, Constraint: SupportedVersions, Err: err}
	}

	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !constraint.Check(version) {
		return nil, &VersionError{Version: v, Constraint: SupportedVersions}
	}

	return version, nil
}

type descriptionFile struct {
	Version      string                 `yaml:"version"`
	ReadSize     int                    `yaml:"read_size"`
	BigEndian    bool                   `yaml:"big_endian"`
	Size         string                 `yaml:"size"`
	Instructions []instructionEntry     `yaml:"instructions"`
	Formats      map[string]formatEntry `yaml:"formats"`
}

type instructionEntry struct {
	Mnemonic string       `yaml:"mnemonic"`
	Comment  string       `yaml:"comment"`
	Format   string       `yaml:"format"`
	Branch   bool         `yaml:"branch"`
	Fields   []fieldEntry `yaml:"fields"`
}

func (e instructionEntry) instruction() (*insts.Instruction, error) {
	opts := []insts.InstructionOption{insts.WithComment(e.Comment)}
	if e.Format != "" {
		opts = append(opts, insts.WithFormat(e.Format))
	}
	if e.Branch {
		opts = append(opts, insts.AsBranch())
	}
	return insts.NewInstruction(e.Mnemonic, elements(e.Fields), opts...)
}

type formatEntry struct {
	Spec string `yaml:"spec"`
	Func string `yaml:"func"`
}

type operandEntry struct {
	Name   string `yaml:"name"`
	Length int    `yaml:"length"`
	Part   *int   `yaml:"part"`
}

// fieldEntry is one element of a field list: a single-key mapping naming
// the field kind.
type fieldEntry struct {
	elem insts.Element
}

func elements(entries []fieldEntry) []insts.Element {
	out := make([]insts.Element, len(entries))
	for i, e := range entries {
		out[i] = e.elem
	}
	return out
}

func (f *fieldEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: a field is a mapping with exactly one key", node.Line)
	}
	key, value := node.Content[0].Value, node.Content[1]

	switch key {
	case "opcode", "reserved":
		bits, err := parseBits(value)
		if err != nil {
			return err
		}
		if key == "opcode" {
			f.elem = insts.Opcode(len(bits), bitsValue(bits))
		} else {
			f.elem = insts.Reserved(len(bits), bitsValue(bits))
		}
	case "operand":
		var op operandEntry
		if err := value.Decode(&op); err != nil {
			return err
		}
		if op.Part == nil {
			f.elem = insts.Operand(op.Length, op.Name)
		} else {
			f.elem = insts.OperandPart(op.Length, op.Name, *op.Part)
		}
	case "alt":
		var seqs [][]fieldEntry
		if err := value.Decode(&seqs); err != nil {
			return err
		}
		alt := make(insts.Alternatives, len(seqs))
		for i, seq := range seqs {
			alt[i] = elements(seq)
		}
		f.elem = alt
	default:
		return fmt.Errorf("line %d: unknown field kind %q", node.Line, key)
	}

	return nil
}

// parseBits reads the raw scalar text so that strings like 0011 keep their
// leading zeros whatever tag YAML resolves them to.
func parseBits(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: bits must be a scalar", node.Line)
	}
	bits := strings.ReplaceAll(strings.TrimPrefix(node.Value, "0b"), "_", "")
	if bits == "" || len(bits) > 64 {
		return "", fmt.Errorf("line %d: bit string %q must hold 1 to 64 bits", node.Line, node.Value)
	}
	for _, c := range bits {
		if c != '0' && c != '1' {
			return "", fmt.Errorf("line %d: invalid bit string %q", node.Line, node.Value)
		}
	}
	return bits, nil
}

func bitsValue(bits string) uint64 {
	var v uint64
	for _, c := range bits {
		v = v<<1 | uint64(c-'0')
	}
	return v
}
