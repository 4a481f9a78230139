package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a value computed by generated code.
type Expr interface {
	isExpr()
	String() string
}

// Var references a declared variable.
type Var struct {
	Name string
}

// Const is an unsigned integer literal.
type Const struct {
	Value uint64
}

// Sym is a symbol defined by the backend, such as a constant name.
type Sym struct {
	Name string
}

// Str is a string literal.
type Str struct {
	Value string
}

// Shr shifts X right by N bits.
type Shr struct {
	X Expr
	N int
}

// Shl shifts X left by N bits.
type Shl struct {
	X Expr
	N int
}

// And is the bitwise and of X and Y.
type And struct {
	X, Y Expr
}

// Or is the bitwise or of X and Y.
type Or struct {
	X, Y Expr
}

// CallExpr is a function call used as a value.
type CallExpr struct {
	Func string
	Args []Expr
}

func (Var) isExpr()      {}
func (Const) isExpr()    {}
func (Sym) isExpr()      {}
func (Str) isExpr()      {}
func (Shr) isExpr()      {}
func (Shl) isExpr()      {}
func (And) isExpr()      {}
func (Or) isExpr()       {}
func (CallExpr) isExpr() {}

func (e Var) String() string   { return e.Name }
func (e Const) String() string { return "0x" + strconv.FormatUint(e.Value, 16) }
func (e Sym) String() string   { return e.Name }
func (e Str) String() string   { return strconv.Quote(e.Value) }
func (e Shr) String() string   { return fmt.Sprintf("(%s >> %d)", e.X, e.N) }
func (e Shl) String() string   { return fmt.Sprintf("(%s << %d)", e.X, e.N) }
func (e And) String() string   { return fmt.Sprintf("(%s & %s)", e.X, e.Y) }
func (e Or) String() string    { return fmt.Sprintf("(%s | %s)", e.X, e.Y) }

func (e CallExpr) String() string {
	return e.Func + "(" + joinExprs(e.Args) + ")"
}

func joinExprs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Op is one operation of a plan.
type Op interface {
	isOp()
}

// Declare introduces a variable of Width bits.
type Declare struct {
	Var   string
	Width int
}

// Assign stores Value into Var.
type Assign struct {
	Var   string
	Value Expr
}

// Read loads Width bytes at byte Offset from the instruction start into Var.
// With Swap the bytes are reversed after the load.
type Read struct {
	Var    string
	Width  int
	Offset int
	Swap   bool
}

// Case is one keyed body of a BranchSwitch.
type Case struct {
	Key  uint64
	Bits string // Key as a bit pattern of the switched window
	Body []Op
}

// BranchSwitch selects the case whose key equals Scrutinee, or Default.
type BranchSwitch struct {
	Scrutinee Expr
	Cases     []Case
	Default   []Op
}

// Call invokes a function for its effect.
type Call struct {
	Func string
	Args []Expr
}

// Comment annotates the plan.
type Comment struct {
	Text string
}

func (Declare) isOp()      {}
func (Assign) isOp()       {}
func (Read) isOp()         {}
func (BranchSwitch) isOp() {}
func (Call) isOp()         {}
func (Comment) isOp()      {}
