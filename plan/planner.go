// Package plan turns a decision tree into the operations of a decoder and
// a disassembler: reads of the instruction stream, switches on bit windows,
// operand extraction and the final handler calls.
//
// A Plan is backend neutral. Code emitters walk Plan.Ops and render each
// operation in their own syntax; the emu package executes them directly.
package plan

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/tree"
)

// Config controls what a Planner emits.
type Config struct {
	insts.Layout

	// HandlerPrefix is prepended to the mnemonic to name a decode handler.
	HandlerPrefix string

	// IllegalHandler is called for bit patterns no instruction matches.
	IllegalHandler string

	// LengthVar receives the instruction length in bytes at every leaf.
	// Empty disables the assignment.
	LengthVar string

	// BranchVar is set to the symbol BranchValue after a branch handler.
	// Empty disables the assignment.
	BranchVar   string
	BranchValue string

	// PrintFunc prints formatted disassembly text.
	PrintFunc string
}

// DefaultConfig returns the conventional names for a layout.
func DefaultConfig(layout insts.Layout) Config {
	return Config{
		Layout:         layout,
		HandlerPrefix:  "gen_",
		IllegalHandler: "gen_illegal",
		LengthVar:      "length",
		BranchVar:      "bstate",
		BranchValue:    "BS_BRANCH",
		PrintFunc:      "print",
	}
}

// Plan is the operation sequence produced for one tree.
type Plan struct {
	Ops    []Op
	Leaves []LeafPlan

	// Diagnostics lists renamed variables and similar oddities.
	Diagnostics []Diagnostic
}

// LeafPlan records the reads performed on the path to one instruction.
type LeafPlan struct {
	Raw   *insts.RawInstruction
	Reads []Read
}

// Planner produces plans. It is safe to reuse but not for concurrent use.
type Planner struct {
	cfg    Config
	logger logrus.FieldLogger
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger for planning diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// NewPlanner creates a Planner for cfg.
func NewPlanner(cfg Config, opts ...Option) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IllegalHandler == "" {
		return nil, fmt.Errorf("illegal instruction handler name is required")
	}

	p := &Planner{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		p.logger = l
	}
	return p, nil
}

// Config returns the planner configuration.
func (p *Planner) Config() Config {
	return p.cfg
}

// epilogue emits the operations ending a leaf once operands are extracted.
type epilogue func(raw *insts.RawInstruction, operands []Var, byName map[string]Var) []Op

// Decode plans the decoder: every leaf ends with a call to the handler of
// its mnemonic taking the operands in order of first appearance.
func (p *Planner) Decode(root *tree.Node) (*Plan, error) {
	return p.plan(root, p.decodeEpilogue)
}

func (p *Planner) decodeEpilogue(raw *insts.RawInstruction, operands []Var, _ map[string]Var) []Op {
	args := make([]Expr, len(operands))
	for i, v := range operands {
		args[i] = v
	}

	ops := []Op{Call{Func: p.cfg.HandlerPrefix + Ident(raw.Mnemonic), Args: args}}
	if raw.Branch && p.cfg.BranchVar != "" {
		ops = append(ops, Assign{Var: p.cfg.BranchVar, Value: Sym{Name: p.cfg.BranchValue}})
	}
	return append(ops, p.lengthOps(raw)...)
}

func (p *Planner) lengthOps(raw *insts.RawInstruction) []Op {
	if p.cfg.LengthVar == "" {
		return nil
	}
	return []Op{Assign{Var: p.cfg.LengthVar, Value: Const{Value: uint64(raw.Bytes())}}}
}

func (p *Planner) plan(root *tree.Node, epi epilogue) (*Plan, error) {
	if root == nil {
		return nil, tree.ErrEmpty
	}
	out := &Plan{}
	ops, err := p.node(root, pathState{}, out, epi)
	if err != nil {
		return nil, err
	}
	out.Ops = ops
	return out, nil
}

func (p *Planner) node(n *tree.Node, st pathState, out *Plan, epi epilogue) ([]Op, error) {
	if n.IsLeaf() {
		return p.leaf(n.Raw, st, out, epi)
	}

	ops, st, err := p.ensure(st, n.Window.End(), "")
	if err != nil {
		return nil, err
	}

	sw := BranchSwitch{Scrutinee: p.extract(st.reads, n.Window)}
	for _, b := range n.Children {
		body, err := p.node(b.Node, st, out, epi)
		if err != nil {
			return nil, err
		}
		key, err := strconv.ParseUint(b.Key, 2, 64)
		if err != nil {
			return nil, fmt.Errorf("bad key %q at %s: %w", b.Key, n.Window, err)
		}
		sw.Cases = append(sw.Cases, Case{Key: key, Bits: b.Key, Body: body})
	}

	if n.Default != nil {
		body, err := p.node(n.Default, st, out, epi)
		if err != nil {
			return nil, err
		}
		sw.Default = body
	} else {
		sw.Default = []Op{Call{Func: p.cfg.IllegalHandler}}
	}

	return append(ops, sw), nil
}

func (p *Planner) leaf(raw *insts.RawInstruction, st pathState, out *Plan, epi epilogue) ([]Op, error) {
	ops := []Op{Comment{Text: raw.Describe() + ": " + raw.Canonical()}}

	reads, st, err := p.ensure(st, raw.Len(), raw.Name)
	if err != nil {
		return nil, err
	}
	ops = append(ops, reads...)

	sc := p.newScope(raw, st, out)
	extraction, operands, byName := p.operands(raw, st, sc)
	ops = append(ops, extraction...)
	ops = append(ops, epi(raw, operands, byName)...)

	out.Leaves = append(out.Leaves, LeafPlan{
		Raw:   raw,
		Reads: append([]Read(nil), st.reads...),
	})
	return ops, nil
}
