package ot

import "github.com/polda-go/pipelinedoc/pkg/otvalue"

// valueDoc is a minimal Transformable wrapping a single otvalue.Value,
// used only to exercise Session in tests.
type valueDoc struct {
	root otvalue.Value
}

func (d *valueDoc) TryApply(op Operation) (*Operation, error) {
	switch op.Kind {
	case KindIncrement:
		cur, err := d.at(op.Pos)
		if err != nil {
			return nil, err
		}
		d.set(op.Pos, otvalue.Number(cur.Num()+op.By))
		undo := Decrement(op.Pos, op.By)
		return &undo, nil
	case KindDecrement:
		cur, err := d.at(op.Pos)
		if err != nil {
			return nil, err
		}
		d.set(op.Pos, otvalue.Number(cur.Num()-op.By))
		undo := Increment(op.Pos, op.By)
		return &undo, nil
	case KindSet:
		prev, err := d.at(op.Pos)
		if err != nil {
			return nil, err
		}
		d.set(op.Pos, op.Val)
		undo := Set(op.Pos, prev)
		return &undo, nil
	default:
		return nil, nil
	}
}

func (d *valueDoc) at(p otvalue.Path) (otvalue.Value, error) {
	v := d.root
	for i := 0; i < p.Len(); i++ {
		b := p.Branch(i)
		if b.IsField() {
			f, ok := v.Field(b.Name)
			if !ok {
				return otvalue.Value{}, &NonexistentPositionError{Pos: p}
			}
			v = f
		} else {
			item, err := v.AtIndex(b.Index)
			if err != nil {
				return otvalue.Value{}, err
			}
			v = item
		}
	}
	return v, nil
}

func (d *valueDoc) set(p otvalue.Path, val otvalue.Value) {
	d.root = setRec(d.root, p, val)
}

func setRec(v otvalue.Value, p otvalue.Path, val otvalue.Value) otvalue.Value {
	if p.IsRoot() {
		return val
	}
	head := p.Branch(0)
	rest := otvalue.NewPath(pathTail(p)...)
	if head.IsField() {
		child, ok := v.Field(head.Name)
		if !ok {
			child = otvalue.Null()
		}
		updated := setRec(child, rest, val)
		out, _ := v.WithField(head.Name, updated)
		return out
	}
	child, _ := v.AtIndex(head.Index)
	updated := setRec(child, rest, val)
	out, _ := v.WithIndex(head.Index, updated)
	return out
}

func pathTail(p otvalue.Path) []otvalue.Branch {
	branches := make([]otvalue.Branch, 0, p.Len()-1)
	for i := 1; i < p.Len(); i++ {
		branches = append(branches, p.Branch(i))
	}
	return branches
}
