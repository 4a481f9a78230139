package emu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/decgen/plan"
)

// StepResult describes one decoded instruction.
type StepResult struct {
	// PC is the address the instruction was decoded at.
	PC uint64

	// Handler is the decode handler the plan called, and Operands the
	// values it was called with.
	Handler  string
	Operands []uint64

	// Length is the instruction length in bytes.
	Length int

	// Text is the disassembly, when a disassembly plan is attached.
	Text string

	// Illegal is set when no instruction matched.
	Illegal bool

	// Branch is set when the plan marked the instruction as a branch.
	Branch bool

	// Err is set if the plan could not be executed.
	Err error
}

// Func computes a value for a plan.CallExpr.
type Func func(args ...uint64) uint64

// Printer renders text for a formatter without a print spec.
type Printer func(args ...uint64) string

// Machine executes decode plans over its memory.
type Machine struct {
	cfg    plan.Config
	decode *plan.Plan
	disas  *plan.Plan

	memory *Memory
	pc     uint64

	funcs    map[string]Func
	printers map[string]Printer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// MachineOption is a functional option for configuring the Machine.
type MachineOption func(*Machine)

// WithDisassembly attaches a disassembly plan. Each step then also fills
// StepResult.Text.
func WithDisassembly(p *plan.Plan) MachineOption {
	return func(m *Machine) {
		m.disas = p
	}
}

// WithFunc registers a value function used by disassembly formatters.
func WithFunc(name string, fn Func) MachineOption {
	return func(m *Machine) {
		m.funcs[name] = fn
	}
}

// WithPrinter registers a printing function used by disassembly formatters.
func WithPrinter(name string, fn Printer) MachineOption {
	return func(m *Machine) {
		m.printers[name] = fn
	}
}

// WithMemory sets the memory to decode from.
func WithMemory(mem *Memory) MachineOption {
	return func(m *Machine) {
		m.memory = mem
	}
}

// WithMaxInstructions sets the maximum number of instructions to decode.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) MachineOption {
	return func(m *Machine) {
		m.maxInstructions = max
	}
}

// NewMachine creates a machine running the decode plan made with cfg.
func NewMachine(cfg plan.Config, decode *plan.Plan, opts ...MachineOption) *Machine {
	m := &Machine{
		cfg:      cfg,
		decode:   decode,
		memory:   NewMemory(),
		funcs:    make(map[string]Func),
		printers: make(map[string]Printer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Memory returns the machine's memory.
func (m *Machine) Memory() *Memory {
	return m.memory
}

// PC returns the address of the next instruction.
func (m *Machine) PC() uint64 {
	return m.pc
}

// SetPC moves decoding to addr.
func (m *Machine) SetPC(addr uint64) {
	m.pc = addr
}

// InstructionCount returns the number of instructions decoded.
func (m *Machine) InstructionCount() uint64 {
	return m.instructionCount
}

// LoadProgram loads code into memory and sets the PC to its start.
func (m *Machine) LoadProgram(addr uint64, code []byte) {
	m.memory.LoadProgram(addr, code)
	m.pc = addr
}

// Step decodes the instruction at the PC and advances past it. The PC does
// not move on illegal instructions or errors.
func (m *Machine) Step() StepResult {
	if m.maxInstructions > 0 && m.instructionCount >= m.maxInstructions {
		return StepResult{PC: m.pc, Err: fmt.Errorf("max instructions reached")}
	}

	res := m.Decode(m.pc)
	if res.Err != nil || res.Illegal {
		return res
	}

	m.instructionCount++
	m.pc += uint64(res.Length)
	return res
}

// Run decodes from the PC to the end of the loaded code. It stops at the
// first illegal instruction or error, which is the last result returned.
func (m *Machine) Run() []StepResult {
	var out []StepResult
	_, hi := m.memory.Bounds()
	for m.pc < hi {
		res := m.Step()
		out = append(out, res)
		if res.Err != nil || res.Illegal {
			break
		}
		if res.Length == 0 {
			res.Err = fmt.Errorf("zero-length instruction at 0x%x", res.PC)
			out[len(out)-1] = res
			break
		}
	}
	return out
}

// Decode runs the plans for the instruction at addr without moving the PC.
func (m *Machine) Decode(addr uint64) StepResult {
	res := StepResult{PC: addr}

	x := m.newExec(addr)
	if err := x.run(m.decode.Ops); err != nil {
		res.Err = fmt.Errorf("decode at 0x%x: %w", addr, err)
		return res
	}
	res.Handler = x.handler
	res.Operands = x.operands
	res.Illegal = x.illegal
	res.Branch = x.branch
	res.Length = int(x.env[m.cfg.LengthVar])

	if m.disas != nil && !res.Illegal {
		d := m.newExec(addr)
		if err := d.run(m.disas.Ops); err != nil {
			res.Err = fmt.Errorf("disassemble at 0x%x: %w", addr, err)
			return res
		}
		res.Text = d.text.String()
	}
	return res
}

// exec is the state of one plan execution.
type exec struct {
	m    *Machine
	base uint64
	env  map[string]uint64

	handler  string
	operands []uint64
	illegal  bool
	branch   bool
	text     strings.Builder
}

func (m *Machine) newExec(base uint64) *exec {
	return &exec{m: m, base: base, env: make(map[string]uint64)}
}

func (x *exec) run(ops []plan.Op) error {
	for _, op := range ops {
		if err := x.step(op); err != nil {
			return err
		}
	}
	return nil
}

func (x *exec) step(op plan.Op) error {
	cfg := x.m.cfg
	switch o := op.(type) {
	case plan.Declare:
		x.env[o.Var] = 0
	case plan.Assign:
		v, err := x.eval(o.Value)
		if err != nil {
			return err
		}
		x.env[o.Var] = v
		if o.Var == cfg.BranchVar && cfg.BranchVar != "" {
			x.branch = true
		}
	case plan.Read:
		x.env[o.Var] = x.load(o)
	case plan.BranchSwitch:
		v, err := x.eval(o.Scrutinee)
		if err != nil {
			return err
		}
		for _, c := range o.Cases {
			if c.Key == v {
				return x.run(c.Body)
			}
		}
		return x.run(o.Default)
	case plan.Call:
		return x.call(o)
	case plan.Comment:
	default:
		return fmt.Errorf("unknown operation %T", op)
	}
	return nil
}

// load performs a read in the target byte order, then reverses the bytes
// when the read asks for a swap.
func (x *exec) load(r plan.Read) uint64 {
	data := x.m.memory.ReadBytes(x.base+uint64(r.Offset), r.Width)
	bigEndian := x.m.cfg.TargetBigEndian != r.Swap

	var v uint64
	for i := range data {
		b := data[i]
		if !bigEndian {
			b = data[len(data)-1-i]
		}
		v = v<<8 | uint64(b)
	}
	return v
}

func (x *exec) call(c plan.Call) error {
	cfg := x.m.cfg
	switch {
	case c.Func == cfg.IllegalHandler:
		x.illegal = true
		return nil
	case c.Func == cfg.PrintFunc:
		return x.print(c.Args)
	}

	if p, ok := x.m.printers[c.Func]; ok {
		args, err := x.evalAll(c.Args)
		if err != nil {
			return err
		}
		x.text.WriteString(p(args...))
		return nil
	}

	args, err := x.evalAll(c.Args)
	if err != nil {
		return err
	}
	x.handler = c.Func
	x.operands = args
	return nil
}

func (x *exec) print(args []plan.Expr) error {
	if len(args) == 0 {
		return fmt.Errorf("%s called without a format", x.m.cfg.PrintFunc)
	}
	format, ok := args[0].(plan.Str)
	if !ok {
		return fmt.Errorf("%s format is %T, not a string", x.m.cfg.PrintFunc, args[0])
	}
	vals, err := x.evalAll(args[1:])
	if err != nil {
		return err
	}
	fmtArgs := make([]any, len(vals))
	for i, v := range vals {
		fmtArgs[i] = v
	}
	fmt.Fprintf(&x.text, format.Value, fmtArgs...)
	return nil
}

func (x *exec) evalAll(exprs []plan.Expr) ([]uint64, error) {
	out := make([]uint64, len(exprs))
	for i, e := range exprs {
		v, err := x.eval(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (x *exec) eval(e plan.Expr) (uint64, error) {
	switch e := e.(type) {
	case plan.Var:
		v, ok := x.env[e.Name]
		if !ok {
			return 0, fmt.Errorf("undeclared variable %s", e.Name)
		}
		return v, nil
	case plan.Const:
		return e.Value, nil
	case plan.Sym:
		if e.Name == x.m.cfg.BranchValue {
			return 1, nil
		}
		if v, err := strconv.ParseUint(e.Name, 0, 64); err == nil {
			return v, nil
		}
		return 0, fmt.Errorf("unknown symbol %s", e.Name)
	case plan.Shr:
		v, err := x.eval(e.X)
		return v >> uint(e.N), err
	case plan.Shl:
		v, err := x.eval(e.X)
		return v << uint(e.N), err
	case plan.And:
		a, err := x.eval(e.X)
		if err != nil {
			return 0, err
		}
		b, err := x.eval(e.Y)
		return a & b, err
	case plan.Or:
		a, err := x.eval(e.X)
		if err != nil {
			return 0, err
		}
		b, err := x.eval(e.Y)
		return a | b, err
	case plan.CallExpr:
		fn, ok := x.m.funcs[e.Func]
		if !ok {
			return 0, fmt.Errorf("unknown function %s", e.Func)
		}
		args, err := x.evalAll(e.Args)
		if err != nil {
			return 0, err
		}
		return fn(args...), nil
	default:
		return 0, fmt.Errorf("cannot evaluate %T", e)
	}
}
