package otvalue

import (
	"encoding/json"
	"fmt"
)

// BranchKind discriminates a Branch's variant.
type BranchKind int

const (
	BranchField BranchKind = iota
	BranchIndex
)

// Branch is one step of a Path: either a named field or a numeric index.
type Branch struct {
	Kind  BranchKind
	Name  string
	Index int
}

func Field(name string) Branch { return Branch{Kind: BranchField, Name: name} }

func Index(i int) Branch { return Branch{Kind: BranchIndex, Index: i} }

func (b Branch) IsField() bool { return b.Kind == BranchField }

func (b Branch) IsIndex() bool { return b.Kind == BranchIndex }

func (b Branch) Equal(o Branch) bool {
	if b.Kind != o.Kind {
		return false
	}
	if b.Kind == BranchField {
		return b.Name == o.Name
	}
	return b.Index == o.Index
}

// PathType governs how a position responds to an operation that
// touches or deletes the region it points into.
type PathType int

const (
	// Anchor can be deleted only if strictly within the delete range.
	Anchor PathType = iota
	// RangeStart can't be deleted; it snaps to the edge of a deletion.
	RangeStart
	// RangeEnd can't be deleted; it snaps to the edge of a deletion.
	RangeEnd
	// Exact can be deleted and can be moved.
	Exact
	// Change is like Exact but no longer exists after a Set.
	Change
)

// Path is an ordered sequence of Branch; length 0 denotes the document root.
type Path struct {
	branches []Branch
}

func NewPath(branches ...Branch) Path {
	return Path{branches: append([]Branch{}, branches...)}
}

func (p Path) Len() int { return len(p.branches) }

func (p Path) IsRoot() bool { return len(p.branches) == 0 }

// Branch returns the branch at position at.
func (p Path) Branch(at int) Branch { return p.branches[at] }

// Leaf returns the last branch. Panics if the path is root.
func (p Path) Leaf() Branch { return p.branches[len(p.branches)-1] }

func (p Path) IsLeafField() bool {
	if p.IsRoot() {
		return false
	}
	return p.Leaf().IsField()
}

func (p Path) IsLeafIndex() bool {
	if p.IsRoot() {
		return false
	}
	return p.Leaf().IsIndex()
}

// WithBranch returns a copy of p with the branch at at replaced.
func (p Path) WithBranch(at int, b Branch) Path {
	out := append([]Branch{}, p.branches...)
	out[at] = b
	return Path{branches: out}
}

// WithHeadReplaced replaces the first `at` branches with head's branches.
func (p Path) WithHeadReplaced(at int, head Path) Path {
	out := append([]Branch{}, head.branches...)
	out = append(out, p.branches[at:]...)
	return Path{branches: out}
}

// IsAncestor reports whether p is a strict ancestor of of.
func (p Path) IsAncestor(of Path) bool {
	if len(p.branches) >= len(of.branches) {
		return false
	}
	return branchesEqual(p.branches, of.branches[:len(p.branches)])
}

// IsAncestorOrEqual reports whether p is an ancestor of, or equal to, of.
func (p Path) IsAncestorOrEqual(of Path) bool {
	if len(p.branches) > len(of.branches) {
		return false
	}
	return branchesEqual(p.branches, of.branches[:len(p.branches)])
}

// IsParentAncestor reports whether p's parent is an ancestor of of, i.e.
// the last branch of p is the one that may differ.
func (p Path) IsParentAncestor(of Path) bool {
	if len(p.branches) == 0 {
		return false
	}
	if len(p.branches) == 1 {
		return true
	}
	if len(p.branches) > len(of.branches) {
		return false
	}
	end := len(p.branches) - 1
	return branchesEqual(p.branches[:end], of.branches[:end])
}

// IsSibling reports whether p and other have the same length and the
// same parent path (same string-inside-array relation for char ops).
func (p Path) IsSibling(other Path) bool {
	if len(p.branches) == 0 {
		return false
	}
	if len(p.branches) != len(other.branches) {
		return false
	}
	end := len(p.branches) - 1
	return branchesEqual(p.branches[:end], other.branches[:end])
}

// IsCompatible reports whether p and other have the same length, and
// at each level the branch kinds match (fields must be equal, indices
// may differ).
func (p Path) IsCompatible(other Path) bool {
	if len(p.branches) != len(other.branches) {
		return false
	}
	for i := range p.branches {
		a, b := p.branches[i], other.branches[i]
		if a.Kind != b.Kind {
			return false
		}
		if a.Kind == BranchField && a.Name != b.Name {
			return false
		}
	}
	return true
}

// Equal reports whether p and other have exactly the same branches.
func (p Path) Equal(other Path) bool {
	return branchesEqual(p.branches, other.branches)
}

// HasPrefix reports whether prefix's branches equal p's leading branches.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.branches) > len(p.branches) {
		return false
	}
	return branchesEqual(prefix.branches, p.branches[:len(prefix.branches)])
}

// wireBranch mirrors the §6 wire rule: a Branch serializes as
// {"field": name} or {"index": n}.
type wireBranch struct {
	Field *string `json:"field,omitempty"`
	Index *int    `json:"index,omitempty"`
}

func (b Branch) MarshalJSON() ([]byte, error) {
	if b.Kind == BranchField {
		name := b.Name
		return json.Marshal(wireBranch{Field: &name})
	}
	idx := b.Index
	return json.Marshal(wireBranch{Index: &idx})
}

func (b *Branch) UnmarshalJSON(data []byte) error {
	var w wireBranch
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Field != nil:
		*b = Field(*w.Field)
	case w.Index != nil:
		*b = Index(*w.Index)
	default:
		return fmt.Errorf("otvalue: branch must carry a field or an index")
	}
	return nil
}

// MarshalJSON renders a Path as an array of wire Branch objects.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.branches)
}

// UnmarshalJSON accepts an array of wire Branch objects. An absent or
// empty array decodes to the root path.
func (p *Path) UnmarshalJSON(data []byte) error {
	var branches []Branch
	if err := json.Unmarshal(data, &branches); err != nil {
		return err
	}
	*p = Path{branches: branches}
	return nil
}

func branchesEqual(a, b []Branch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
