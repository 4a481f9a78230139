package tree_test

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/tree"
)

var layout = insts.Layout{ReadSize: 8, DescBigEndian: true}

func expand(instrs ...*insts.Instruction) []*insts.RawInstruction {
	raws, err := insts.NewExpander(layout).ExpandAll(instrs, insts.SizeAny)
	Expect(err).NotTo(HaveOccurred())
	return raws
}

func toySet() []*insts.RawInstruction {
	return expand(
		insts.MustInstruction("nop", insts.Seq(insts.Opcode(8, 0))),
		insts.MustInstruction("mov", insts.Seq(
			insts.Opcode(4, 0b0001), insts.Operand(2, "rd"), insts.Operand(2, "rs"))),
		insts.MustInstruction("add", insts.Seq(insts.Opcode(4, 0b0010), insts.Operand(4, "rd"))),
		insts.MustInstruction("li", insts.Seq(
			insts.Opcode(4, 0b0011), insts.Operand(4, "rd"), insts.Operand(8, "imm"))),
		insts.MustInstruction("jmp", insts.Seq(insts.Opcode(2, 0b01), insts.Operand(6, "off")),
			insts.AsBranch()),
		insts.MustInstruction("ld", insts.Seq(
			insts.Opcode(4, 0b1000),
			insts.Alt(
				insts.Seq(insts.Opcode(1, 0), insts.Operand(3, "r")),
				insts.Seq(insts.Opcode(1, 1), insts.Operand(3, "r"), insts.Operand(8, "disp")),
			),
		)),
		insts.MustInstruction("sys", insts.Seq(insts.Opcode(4, 0b1110), insts.Operand(4, "n"))),
		insts.MustInstruction("halt", insts.Seq(insts.Opcode(8, 0xff))),
	)
}

// fill replaces every x of a canonical string with a random bit.
func fill(canonical string, rng *rand.Rand) string {
	b := []byte(canonical)
	for i, c := range b {
		if c == 'x' {
			b[i] = byte('0' + rng.Intn(2))
		}
	}
	return string(b)
}

var sameRaw = cmp.Comparer(func(a, b *insts.RawInstruction) bool {
	return a.Equal(b)
})

var _ = Describe("Builder", func() {
	var builder *tree.Builder

	BeforeEach(func() {
		builder = tree.NewBuilder()
	})

	It("should build a leaf for a single instruction", func() {
		raws := expand(insts.MustInstruction("nop", insts.Seq(insts.Opcode(8, 0))))

		root, err := builder.Build(raws)

		Expect(err).NotTo(HaveOccurred())
		Expect(root.IsLeaf()).To(BeTrue())
		Expect(root.Raw.Name).To(Equal("nop_0"))
	})

	It("should collapse repeated encodings into one leaf", func() {
		raws := expand(insts.MustInstruction("nop", insts.Seq(insts.Opcode(8, 0))))

		root, err := builder.Build([]*insts.RawInstruction{raws[0], raws[0]})

		Expect(err).NotTo(HaveOccurred())
		Expect(root.IsLeaf()).To(BeTrue())
	})

	It("should reject an empty set", func() {
		_, err := builder.Build(nil)
		Expect(err).To(MatchError(tree.ErrEmpty))
	})

	It("should key two opcodes on their common run", func() {
		raws := expand(
			insts.MustInstruction("i1", insts.Seq(insts.Opcode(4, 0b0000), insts.Operand(4, "rd"))),
			insts.MustInstruction("i2", insts.Seq(insts.Opcode(4, 0b0001), insts.Operand(4, "rd"))),
		)
		Expect(insts.CommonOpcode(raws)).To(Equal([]insts.Window{{Offset: 0, Length: 4}}))

		root, err := builder.Build(raws)

		Expect(err).NotTo(HaveOccurred())
		Expect(root.Window).To(Equal(insts.Window{Offset: 0, Length: 4}))
		Expect(root.Resolved).To(BeFalse())
		Expect(root.Children).To(HaveLen(2))
		Expect(root.Children[0].Key).To(Equal("0000"))
		Expect(root.Children[0].Node.Raw.Mnemonic).To(Equal("i1"))
		Expect(root.Children[1].Key).To(Equal("0001"))
		Expect(root.Children[1].Node.Raw.Mnemonic).To(Equal("i2"))
		Expect(root.Default).To(BeNil())
		Expect(root.Match("00101111")).To(BeNil())
	})

	It("should report overlapping encodings", func() {
		raws := expand(
			insts.MustInstruction("i3", insts.Seq(insts.Reserved(8, 0))),
			insts.MustInstruction("i4", insts.Seq(insts.Opcode(4, 0), insts.Operand(4, "x"))),
		)

		_, err := builder.Build(raws)

		var conflict *tree.UnresolvedConflictError
		Expect(errors.As(err, &conflict)).To(BeTrue())
		Expect(conflict.First).To(Equal("i3"))
		Expect(conflict.Second).To(Equal("i4"))
		Expect(conflict.Members).To(ConsistOf("i3_0", "i4_0"))
		Expect(err.Error()).To(Equal("unresolved conflict: i3 with i4"))
	})

	It("should name conflicting instructions by comment", func() {
		raws := expand(
			insts.MustInstruction("i3", insts.Seq(insts.Reserved(8, 0)),
				insts.WithComment("zero word")),
			insts.MustInstruction("i4", insts.Seq(insts.Opcode(4, 0), insts.Operand(4, "x"))),
		)

		_, err := builder.Build(raws)

		Expect(err).To(MatchError("unresolved conflict: zero word with i4"))
	})

	It("should resolve a conflict with a field outside the common runs", func() {
		raws := expand(
			insts.MustInstruction("a", insts.Seq(insts.Opcode(2, 0b00), insts.Operand(2, "r"))),
			insts.MustInstruction("b", insts.Seq(
				insts.Opcode(1, 1), insts.Operand(1, "p"), insts.Opcode(1, 0), insts.Operand(1, "q"))),
			insts.MustInstruction("c", insts.Seq(
				insts.Operand(1, "p"), insts.Opcode(2, 0b11), insts.Operand(1, "q"))),
		)
		Expect(insts.CommonOpcode(raws)).To(BeEmpty())

		root, err := builder.Build(raws)

		Expect(err).NotTo(HaveOccurred())
		Expect(root.Resolved).To(BeTrue())
		Expect(root.Window).To(Equal(insts.Window{Offset: 0, Length: 2}))
		Expect(root.Children).To(HaveLen(1))
		Expect(root.Child("00").Raw.Mnemonic).To(Equal("a"))
		Expect(root.Default).NotTo(BeNil())
		Expect(root.Default.Window).To(Equal(insts.Window{Offset: 2, Length: 1}))
		Expect(root.Default.Child("0").Raw.Mnemonic).To(Equal("b"))
		Expect(root.Default.Child("1").Raw.Mnemonic).To(Equal("c"))

		Expect(root.Match("0011").Mnemonic).To(Equal("a"))
		Expect(root.Match("1000").Mnemonic).To(Equal("b"))
		Expect(root.Match("0110").Mnemonic).To(Equal("c"))
	})

	Describe("tree properties", func() {
		var (
			raws []*insts.RawInstruction
			root *tree.Node
		)

		BeforeEach(func() {
			raws = toySet()
			var err error
			root, err = builder.Build(raws)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should partition the members of every node", func() {
			var check func(n *tree.Node) []string
			check = func(n *tree.Node) []string {
				if n.IsLeaf() {
					return []string{n.Raw.Name}
				}
				seen := make(map[string]bool)
				var all []string
				children := make([]*tree.Node, 0, len(n.Children)+1)
				for _, b := range n.Children {
					children = append(children, b.Node)
				}
				if n.Default != nil {
					children = append(children, n.Default)
				}
				for _, c := range children {
					for _, name := range check(c) {
						Expect(seen[name]).To(BeFalse(), "%s reachable twice", name)
						seen[name] = true
						all = append(all, name)
					}
				}
				return all
			}

			var want []string
			for _, r := range raws {
				want = append(want, r.Name)
			}
			Expect(check(root)).To(ConsistOf(want))
		})

		It("should key every path with the leaf's own bits", func() {
			root.Walk(func(path []tree.Step, n *tree.Node) {
				if !n.IsLeaf() {
					return
				}
				s := n.Raw.Canonical()
				for _, step := range path {
					if step.Key == "" {
						continue
					}
					Expect(s[step.Window.Offset:step.Window.End()]).To(Equal(step.Key))
				}
			})
		})

		It("should select every leaf for any filling of its operand bits", func() {
			rng := rand.New(rand.NewSource(7))
			for _, r := range raws {
				for i := 0; i < 32; i++ {
					bits := fill(r.Canonical(), rng)
					Expect(root.Match(bits)).To(BeIdenticalTo(r), "bits %s", bits)
				}
			}
		})

		It("should not depend on input order", func() {
			rng := rand.New(rand.NewSource(11))
			for i := 0; i < 10; i++ {
				shuffled := append([]*insts.RawInstruction(nil), raws...)
				rng.Shuffle(len(shuffled), func(a, b int) {
					shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
				})

				other, err := builder.Build(shuffled)

				Expect(err).NotTo(HaveOccurred())
				Expect(cmp.Diff(root, other, sameRaw)).To(BeEmpty())
			}
		})

		It("should build the same tree in parallel", func() {
			parallel := tree.NewBuilder(tree.WithWorkers(4), tree.WithParallelDepth(3))

			other, err := parallel.Build(raws)

			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(root, other, sameRaw)).To(BeEmpty())
		})

		It("should render the tree", func() {
			out := root.String()

			Expect(out).To(ContainSubstring("switch [0+2]"))
			Expect(out).To(ContainSubstring("halt_0 11111111"))
			Expect(strings.Count(out, "\n")).To(BeNumerically(">=", len(raws)))
		})

		It("should list its leaves", func() {
			Expect(root.Leaves()).To(HaveLen(len(raws)))
		})
	})

	It("should return the first conflict in key order when building in parallel", func() {
		raws := expand(
			insts.MustInstruction("a0", insts.Seq(insts.Opcode(2, 0), insts.Reserved(6, 0))),
			insts.MustInstruction("a1", insts.Seq(insts.Opcode(2, 0), insts.Opcode(2, 0), insts.Operand(4, "v"))),
			insts.MustInstruction("b0", insts.Seq(insts.Opcode(2, 1), insts.Reserved(6, 0))),
			insts.MustInstruction("b1", insts.Seq(insts.Opcode(2, 1), insts.Opcode(2, 0), insts.Operand(4, "v"))),
		)
		parallel := tree.NewBuilder(tree.WithWorkers(4), tree.WithParallelDepth(2))

		for i := 0; i < 10; i++ {
			_, err := parallel.Build(raws)

			var conflict *tree.UnresolvedConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.First).To(Equal("a0"))
			Expect(conflict.Second).To(Equal("a1"))
		}
	})
})
