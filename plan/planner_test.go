package plan_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/plan"
	"github.com/sarchlab/decgen/tree"
)

func build(layout insts.Layout, instrs ...*insts.Instruction) (*tree.Node, []*insts.RawInstruction) {
	raws, err := insts.NewExpander(layout).ExpandAll(instrs, insts.SizeAny)
	Expect(err).NotTo(HaveOccurred())
	root, err := tree.NewBuilder().Build(raws)
	Expect(err).NotTo(HaveOccurred())
	return root, raws
}

func newPlanner(layout insts.Layout) *plan.Planner {
	p, err := plan.NewPlanner(plan.DefaultConfig(layout))
	Expect(err).NotTo(HaveOccurred())
	return p
}

// leafBody returns the ops of the switch case keyed by bits.
func leafBody(ops []plan.Op, bits string) []plan.Op {
	for _, op := range ops {
		sw, ok := op.(plan.BranchSwitch)
		if !ok {
			continue
		}
		for _, c := range sw.Cases {
			if c.Bits == bits {
				return c.Body
			}
		}
	}
	return nil
}

var be8 = insts.Layout{ReadSize: 8, DescBigEndian: true, TargetBigEndian: true}

var _ = Describe("Planner", func() {
	It("should reject an unsupported layout", func() {
		_, err := plan.NewPlanner(plan.DefaultConfig(insts.Layout{ReadSize: 7}))

		var layoutErr *insts.LayoutError
		Expect(errors.As(err, &layoutErr)).To(BeTrue())
	})

	It("should require an illegal instruction handler", func() {
		cfg := plan.DefaultConfig(be8)
		cfg.IllegalHandler = ""

		_, err := plan.NewPlanner(cfg)

		Expect(err).To(HaveOccurred())
	})

	Describe("Decode", func() {
		It("should plan a switch on the differentiator", func() {
			root, _ := build(be8,
				insts.MustInstruction("i1", insts.Seq(insts.Opcode(4, 0b0000), insts.Operand(4, "rd"))),
				insts.MustInstruction("i2", insts.Seq(insts.Opcode(4, 0b0001), insts.Operand(4, "rd"))),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(HaveLen(3))
			Expect(p.Ops[0]).To(Equal(plan.Declare{Var: "r0_1", Width: 8}))
			Expect(p.Ops[1]).To(Equal(plan.Read{Var: "r0_1", Width: 1, Offset: 0}))

			sw := p.Ops[2].(plan.BranchSwitch)
			Expect(sw.Scrutinee).To(Equal(plan.And{
				X: plan.Shr{X: plan.Var{Name: "r0_1"}, N: 4},
				Y: plan.Const{Value: 0xf},
			}))
			Expect(sw.Cases).To(HaveLen(2))
			Expect(sw.Cases[0].Key).To(Equal(uint64(0)))
			Expect(sw.Cases[0].Bits).To(Equal("0000"))
			Expect(sw.Cases[1].Key).To(Equal(uint64(1)))
			Expect(sw.Default).To(Equal([]plan.Op{plan.Call{Func: "gen_illegal"}}))

			Expect(sw.Cases[0].Body).To(Equal([]plan.Op{
				plan.Comment{Text: "i1: 0000xxxx"},
				plan.Declare{Var: "rd", Width: 4},
				plan.Assign{Var: "rd", Value: plan.And{X: plan.Var{Name: "r0_1"}, Y: plan.Const{Value: 0xf}}},
				plan.Call{Func: "gen_i1", Args: []plan.Expr{plan.Var{Name: "rd"}}},
				plan.Assign{Var: "length", Value: plan.Const{Value: 1}},
			}))
		})

		It("should read the rest of the instruction at the leaf", func() {
			root, _ := build(be8,
				insts.MustInstruction("li", insts.Seq(insts.Opcode(8, 1), insts.Operand(16, "imm"))),
				insts.MustInstruction("nop", insts.Seq(insts.Opcode(8, 0))),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			body := leafBody(p.Ops, "00000001")
			Expect(body[1]).To(Equal(plan.Declare{Var: "r1_2", Width: 16}))
			Expect(body[2]).To(Equal(plan.Read{Var: "r1_2", Width: 2, Offset: 1}))
			Expect(body).To(ContainElements(
				plan.Assign{Var: "imm_15_8", Value: plan.And{
					X: plan.Shr{X: plan.Var{Name: "r1_2"}, N: 8},
					Y: plan.Const{Value: 0xff},
				}},
				plan.Assign{Var: "imm_7_0", Value: plan.And{
					X: plan.Var{Name: "r1_2"},
					Y: plan.Const{Value: 0xff},
				}},
			))

			nop := leafBody(p.Ops, "00000000")
			for _, op := range nop {
				Expect(op).NotTo(BeAssignableToTypeOf(plan.Read{}))
			}
		})

		It("should round reads to whole units and swap them", func() {
			layout := insts.Layout{ReadSize: 16, DescBigEndian: true}
			root, _ := build(layout,
				insts.MustInstruction("a", insts.Seq(insts.Opcode(4, 1), insts.Operand(12, "v"))),
				insts.MustInstruction("b", insts.Seq(insts.Opcode(4, 2), insts.Operand(12, "v"))),
			)

			p, err := newPlanner(layout).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops[1]).To(Equal(plan.Read{Var: "r0_2", Width: 2, Offset: 0, Swap: true}))
			Expect(p.Ops[2].(plan.BranchSwitch).Scrutinee).To(Equal(plan.And{
				X: plan.Shr{X: plan.Var{Name: "r0_2"}, N: 12},
				Y: plan.Const{Value: 0xf},
			}))
		})

		It("should fail on reads wider than eight bytes", func() {
			root, _ := build(be8,
				insts.MustInstruction("big", insts.Seq(insts.Opcode(8, 1), insts.Operand(64, "imm"))),
			)

			_, err := newPlanner(be8).Decode(root)

			var overflow *plan.ReadWidthOverflowError
			Expect(errors.As(err, &overflow)).To(BeTrue())
			Expect(overflow.Width).To(Equal(9))
			Expect(overflow.Offset).To(Equal(0))
			Expect(overflow.Instruction).To(Equal("big_0"))
		})

		It("should report a switch window past eight bytes as a read overflow", func() {
			root, _ := build(be8,
				insts.MustInstruction("w1", insts.Seq(insts.Opcode(40, 0), insts.Opcode(32, 1))),
				insts.MustInstruction("w2", insts.Seq(insts.Opcode(40, 0), insts.Opcode(32, 2))),
			)
			Expect(root.IsLeaf()).To(BeFalse())

			_, err := newPlanner(be8).Decode(root)

			var overflow *plan.ReadWidthOverflowError
			Expect(errors.As(err, &overflow)).To(BeTrue())
			Expect(overflow.Width).To(Equal(9))
			Expect(overflow.Offset).To(Equal(0))
			Expect(overflow.Instruction).To(BeEmpty())
		})

		It("should compose multi-part operands by part index", func() {
			root, _ := build(be8,
				insts.MustInstruction("imm", insts.Seq(
					insts.Opcode(8, 0xab),
					insts.OperandPart(4, "imm", 0),
					insts.OperandPart(4, "imm", 1),
				)),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElements(
				plan.Assign{Var: "imm_3_0", Value: plan.And{
					X: plan.Shr{X: plan.Var{Name: "r0_2"}, N: 4}, Y: plan.Const{Value: 0xf}}},
				plan.Assign{Var: "imm_7_4", Value: plan.And{
					X: plan.Var{Name: "r0_2"}, Y: plan.Const{Value: 0xf}}},
				plan.Declare{Var: "imm", Width: 8},
				plan.Assign{Var: "imm", Value: plan.Var{Name: "imm_3_0"}},
				plan.Assign{Var: "imm", Value: plan.Or{
					X: plan.Var{Name: "imm"},
					Y: plan.Shl{X: plan.Var{Name: "imm_7_4"}, N: 4},
				}},
			))
		})

		It("should mark branches", func() {
			root, _ := build(be8,
				insts.MustInstruction("jmp", insts.Seq(insts.Opcode(2, 1), insts.Operand(6, "off")),
					insts.AsBranch()),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(
				plan.Assign{Var: "bstate", Value: plan.Sym{Name: "BS_BRANCH"}}))
		})

		It("should pass operands in order of first appearance", func() {
			root, _ := build(be8,
				insts.MustInstruction("add", insts.Seq(
					insts.Opcode(2, 0), insts.Operand(3, "rs"), insts.Operand(3, "rd"))),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(plan.Call{
				Func: "gen_add",
				Args: []plan.Expr{plan.Var{Name: "rs"}, plan.Var{Name: "rd"}},
			}))
		})

		It("should rename colliding variables and report them", func() {
			root, _ := build(be8,
				insts.MustInstruction("odd", insts.Seq(
					insts.Opcode(2, 0),
					insts.Operand(2, "Rd"),
					insts.Operand(2, "rd"),
					insts.Operand(2, "length"),
				)),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(plan.Call{
				Func: "gen_odd",
				Args: []plan.Expr{
					plan.Var{Name: "rd"},
					plan.Var{Name: "rd_1"},
					plan.Var{Name: "length_1"},
				},
			}))
			Expect(p.Diagnostics).To(HaveLen(2))
			Expect(p.Diagnostics[0].Instruction).To(Equal("odd_0"))
			Expect(p.Diagnostics[0].Message).To(ContainSubstring("rd_1"))
		})

		It("should record the reads of every leaf in order", func() {
			root, raws := build(be8,
				insts.MustInstruction("nop", insts.Seq(insts.Opcode(8, 0))),
				insts.MustInstruction("li", insts.Seq(
					insts.Opcode(4, 0b0011), insts.Operand(4, "rd"), insts.Operand(16, "imm"))),
				insts.MustInstruction("jmp", insts.Seq(insts.Opcode(2, 0b01), insts.Operand(6, "off"))),
				insts.MustInstruction("far", insts.Seq(
					insts.Opcode(4, 0b1000), insts.Operand(4, "r"), insts.Operand(24, "disp"))),
				insts.MustInstruction("sel", insts.Seq(
					insts.Opcode(4, 0b1001), insts.Operand(8, "r"), insts.Opcode(4, 0b0110))),
				insts.MustInstruction("sel2", insts.Seq(
					insts.Opcode(4, 0b1001), insts.Operand(8, "r"), insts.Opcode(4, 0b0111))),
			)

			p, err := newPlanner(be8).Decode(root)

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Leaves).To(HaveLen(len(raws)))
			for _, leaf := range p.Leaves {
				next := 0
				for _, r := range leaf.Reads {
					Expect(r.Offset).To(Equal(next), leaf.Raw.Name)
					next = r.Offset + r.Width
				}
				Expect(next).To(BeNumerically(">=", leaf.Raw.Bytes()))
			}
		})
	})

	Describe("Disassemble", func() {
		var root *tree.Node

		BeforeEach(func() {
			root, _ = build(be8,
				insts.MustInstruction("mov", insts.Seq(
					insts.Opcode(2, 0), insts.Operand(3, "rd"), insts.Operand(3, "rs")),
					insts.WithFormat("mov <rd>, <rs> ; 100%")),
			)
		})

		It("should print placeholders through the format table", func() {
			p, err := newPlanner(be8).Disassemble(root, plan.FormatTable{
				"rd": {Spec: "r%d"},
				"rs": {Spec: "r%d"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(plan.Call{
				Func: "print",
				Args: []plan.Expr{
					plan.Str{Value: "mov r%d, r%d ; 100%%"},
					plan.Var{Name: "rd"},
					plan.Var{Name: "rs"},
				},
			}))
		})

		It("should flush the line before a printer formatter", func() {
			p, err := newPlanner(be8).Disassemble(root, plan.FormatTable{
				"rd": {Spec: "r%d"},
				"rs": {Func: "print_reg"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElements(
				plan.Call{Func: "print", Args: []plan.Expr{
					plan.Str{Value: "mov r%d, "}, plan.Var{Name: "rd"}}},
				plan.Call{Func: "print_reg", Args: []plan.Expr{plan.Var{Name: "rs"}}},
				plan.Call{Func: "print", Args: []plan.Expr{plan.Str{Value: " ; 100%%"}}},
			))
		})

		It("should wrap values in converter calls", func() {
			p, err := newPlanner(be8).Disassemble(root, plan.FormatTable{
				"rd":    {Spec: "%s", Func: "reg_name"},
				"rs, 4": {Spec: "%d"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(plan.Call{
				Func: "print",
				Args: []plan.Expr{
					plan.Str{Value: "mov %s, <rs> ; 100%%"},
					plan.CallExpr{Func: "reg_name", Args: []plan.Expr{plan.Var{Name: "rd"}}},
				},
			}))
		})

		It("should pass non-operand names as symbols", func() {
			root, _ := build(be8,
				insts.MustInstruction("sh", insts.Seq(insts.Opcode(4, 0), insts.Operand(4, "n")),
					insts.WithFormat("sh <n, 4$scale>")),
			)

			p, err := newPlanner(be8).Disassemble(root, plan.FormatTable{
				"n, 4$scale": {Spec: "%d", Func: "scale"},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Ops).To(ContainElement(plan.Call{
				Func: "print",
				Args: []plan.Expr{
					plan.Str{Value: "sh %d"},
					plan.CallExpr{Func: "scale", Args: []plan.Expr{plan.Var{Name: "n"}, plan.Sym{Name: "4"}}},
				},
			}))
		})
	})

	It("should dump a readable listing", func() {
		root, _ := build(be8,
			insts.MustInstruction("i1", insts.Seq(insts.Opcode(4, 0b0000), insts.Operand(4, "rd"))),
			insts.MustInstruction("i2", insts.Seq(insts.Opcode(4, 0b0001), insts.Operand(4, "rd"))),
		)
		p, err := newPlanner(be8).Decode(root)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(plan.Dump(&buf, p.Ops)).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("r0_1 = read(1, 0)\n"))
		Expect(buf.String()).To(ContainSubstring("switch ((r0_1 >> 4) & 0xf)\n"))
		Expect(buf.String()).To(ContainSubstring("    case 0x1: // 0001\n"))
		Expect(buf.String()).To(ContainSubstring("gen_i2(rd)"))
		Expect(buf.String()).To(ContainSubstring("        gen_illegal()\n"))
	})

	It("should name identifiers like the generated code does", func() {
		Expect(plan.Ident("Rd")).To(Equal("rd"))
		Expect(plan.Ident("2nd")).To(Equal("_2nd"))
		Expect(plan.Ident("a.b")).To(Equal("a_b"))
		Expect(plan.Ident("")).To(Equal("_"))
	})
})
