package tree

import (
	"fmt"

	"github.com/sarchlab/decgen/insts"
)

// UnresolvedConflictError reports instructions that no bit window can tell
// apart. First and Second describe an offending pair by comment, or by
// mnemonic when there is no comment.
type UnresolvedConflictError struct {
	First  string
	Second string

	// Members are the names of every encoding left undistinguished.
	Members []string
}

func (e *UnresolvedConflictError) Error() string {
	return fmt.Sprintf("unresolved conflict: %s with %s", e.First, e.Second)
}

// newConflictError names the first overlapping pair among members, or the
// first two members when none overlap.
func newConflictError(members []*insts.RawInstruction) *UnresolvedConflictError {
	a, b := members[0], members[1]
	found := false
	for i := 0; i < len(members) && !found; i++ {
		for j := i + 1; j < len(members); j++ {
			if insts.Overlaps(members[i], members[j]) {
				a, b = members[i], members[j]
				found = true
				break
			}
		}
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return &UnresolvedConflictError{
		First:   a.Describe(),
		Second:  b.Describe(),
		Members: names,
	}
}
