package tree

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/decgen/insts"
)

// ErrEmpty is returned when building from no instructions.
var ErrEmpty = errors.New("no instructions to build a tree from")

// Builder builds decision trees. A Builder holds no state between builds
// and may be reused.
type Builder struct {
	logger        logrus.FieldLogger
	workers       int
	parallelDepth int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for build diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithWorkers sets how many sibling subtrees of one node are built
// concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		b.workers = n
	}
}

// WithParallelDepth sets the number of tree levels whose subtrees are built
// concurrently. Zero builds sequentially.
func WithParallelDepth(d int) Option {
	return func(b *Builder) {
		b.parallelDepth = d
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{workers: 1}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		b.logger = l
	}
	if b.workers < 1 {
		b.workers = 1
	}
	return b
}

// Build returns the decision tree identifying raws. The input order does
// not affect the result. Encodings with the same name are built once.
func (b *Builder) Build(raws []*insts.RawInstruction) (*Node, error) {
	if len(raws) == 0 {
		return nil, ErrEmpty
	}

	members := make([]*insts.RawInstruction, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, r := range raws {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		members = append(members, r)
	}
	sort.SliceStable(members, func(i, j int) bool {
		ci, cj := members[i].Canonical(), members[j].Canonical()
		if ci != cj {
			return ci < cj
		}
		return members[i].Name < members[j].Name
	})

	b.logger.WithField("instructions", len(members)).Debug("building decision tree")
	return b.build(members, 0)
}

func (b *Builder) build(members []*insts.RawInstruction, depth int) (*Node, error) {
	if len(members) == 1 {
		return &Node{Raw: members[0]}, nil
	}

	node := &Node{}
	w, ok := differentiator(members)
	if !ok {
		w, ok = conflictWindow(members)
		if !ok {
			return nil, newConflictError(members)
		}
		node.Resolved = true
		b.logger.WithFields(logrus.Fields{
			"window":  w.String(),
			"members": len(members),
			"depth":   depth,
		}).Debug("resolved conflict")
	}
	node.Window = w

	keys, buckets, rest := partition(members, w)
	if len(keys)+btoi(len(rest) > 0) < 2 {
		return nil, newConflictError(members)
	}

	children := make([]*Node, len(keys))
	var def *Node
	builds := make([]func() error, 0, len(keys)+1)
	for i, k := range keys {
		builds = append(builds, func() error {
			n, err := b.build(buckets[k], depth+1)
			children[i] = n
			return err
		})
	}
	if len(rest) > 0 {
		builds = append(builds, func() error {
			n, err := b.build(rest, depth+1)
			def = n
			return err
		})
	}

	if err := b.run(builds, depth); err != nil {
		return nil, err
	}

	node.Children = make([]Branch, len(keys))
	for i, k := range keys {
		node.Children[i] = Branch{Key: k, Node: children[i]}
	}
	node.Default = def
	return node, nil
}

// run executes the subtree builds and returns the first error in bucket
// order, regardless of scheduling.
func (b *Builder) run(builds []func() error, depth int) error {
	errs := make([]error, len(builds))

	if depth >= b.parallelDepth || b.workers == 1 || len(builds) < 2 {
		for i, f := range builds {
			errs[i] = f()
			if errs[i] != nil {
				return errs[i]
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, f := range builds {
		g.Go(func() error {
			errs[i] = f()
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// differentiator returns the first common opcode run on which the members
// disagree.
func differentiator(members []*insts.RawInstruction) (insts.Window, bool) {
	for _, run := range insts.CommonOpcode(members) {
		first, _ := members[0].OpcodePart(run)
		for _, m := range members[1:] {
			if v, _ := m.OpcodePart(run); v != first {
				return run, true
			}
		}
	}
	return insts.Window{}, false
}

// conflictWindow scans the fragment windows of every member for one that
// some but not all members have concrete. Members come in the sorted
// (canonical, name) order Build establishes, not declaration order; each
// member's fragments are scanned in declaration order. A window is rejected when a member without concrete bits
// there is compatible with one of the keyed values.
func conflictWindow(members []*insts.RawInstruction) (insts.Window, bool) {
	tried := make(map[insts.Window]bool)
	for _, m := range members {
		for _, f := range m.Fragments {
			w := f.Window()
			if tried[w] {
				continue
			}
			tried[w] = true
			if qualifies(members, w) {
				return w, true
			}
		}
	}
	return insts.Window{}, false
}

func qualifies(members []*insts.RawInstruction, w insts.Window) bool {
	var keyed []string
	var open []*insts.RawInstruction
	for _, m := range members {
		if v, ok := m.OpcodePart(w); ok {
			keyed = append(keyed, v)
		} else {
			open = append(open, m)
		}
	}
	if len(keyed) == 0 || len(open) == 0 {
		return false
	}

	for _, m := range open {
		pattern := windowPattern(m, w)
		for _, v := range keyed {
			if insts.MatchBits(pattern, v) {
				return false
			}
		}
	}
	return true
}

// windowPattern returns the canonical bits of m in w. Positions past the
// end of m belong to whatever follows and read as x.
func windowPattern(m *insts.RawInstruction, w insts.Window) string {
	s := m.Canonical()
	out := make([]byte, w.Length)
	for i := range out {
		p := w.Offset + i
		if p < len(s) {
			out[i] = s[p]
		} else {
			out[i] = 'x'
		}
	}
	return string(out)
}

// partition groups members by their value in w. Members without concrete
// bits there are returned in rest. Keys are sorted.
func partition(
	members []*insts.RawInstruction,
	w insts.Window,
) (keys []string, buckets map[string][]*insts.RawInstruction, rest []*insts.RawInstruction) {
	buckets = make(map[string][]*insts.RawInstruction)
	for _, m := range members {
		v, ok := m.OpcodePart(w)
		if !ok {
			rest = append(rest, m)
			continue
		}
		if _, seen := buckets[v]; !seen {
			keys = append(keys, v)
		}
		buckets[v] = append(buckets[v], m)
	}
	sort.Strings(keys)
	return keys, buckets, rest
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
