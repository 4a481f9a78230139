package tree

import "github.com/sarchlab/decgen/insts"

// Stats summarizes the shape of a decision tree.
type Stats struct {
	Leaves   int
	MinDepth int
	MaxDepth int
	AvgDepth float64

	// Unreachable lists instructions of the input set that no leaf holds.
	Unreachable []string
}

// Collect computes the statistics of root against the instruction set it
// was built from.
func Collect(root *Node, raws []*insts.RawInstruction) Stats {
	var s Stats
	total := 0
	held := make(map[string]bool)

	root.Walk(func(path []Step, n *Node) {
		if !n.IsLeaf() {
			return
		}
		d := len(path)
		if s.Leaves == 0 || d < s.MinDepth {
			s.MinDepth = d
		}
		if d > s.MaxDepth {
			s.MaxDepth = d
		}
		total += d
		s.Leaves++
		held[n.Raw.Name] = true
	})
	if s.Leaves > 0 {
		s.AvgDepth = float64(total) / float64(s.Leaves)
	}

	for _, r := range raws {
		if !held[r.Name] {
			s.Unreachable = append(s.Unreachable, r.Name)
		}
	}
	return s
}
