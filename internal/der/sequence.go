package der

import "fmt"

// Sequence is the list of immediate children of a constructed object.
type Sequence struct {
	parent Object
	items  []Object
}

// Sequence splits a constructed object (SEQUENCE, SET or a constructed
// context-specific tag) into its immediate children.
func (o Object) Sequence() (Sequence, error) {
	if !o.Constructed() {
		return Sequence{}, &SyntaxError{Offset: o.Offset, Err: ErrNotConstructed}
	}

	var items []Object
	rest := o.Value
	off := o.Offset + o.HeaderLen()
	for len(rest) > 0 {
		child, r, err := readObject(rest, off)
		if err != nil {
			return Sequence{}, err
		}
		items = append(items, child)
		off += len(child.Raw)
		rest = r
	}

	return Sequence{parent: o, items: items}, nil
}

// DecodeSequence decodes b as one constructed object and returns its
// children.
func DecodeSequence(b []byte) (Sequence, Object, error) {
	obj, err := Decode(b)
	if err != nil {
		return Sequence{}, Object{}, err
	}
	seq, err := obj.Sequence()
	if err != nil {
		return Sequence{}, Object{}, err
	}
	return seq, obj, nil
}

// Len returns the number of children.
func (s Sequence) Len() int {
	return len(s.items)
}

// Get returns the child at index i.
func (s Sequence) Get(i int) (Object, error) {
	if i < 0 || i >= len(s.items) {
		return Object{}, &SyntaxError{
			Offset: s.parent.Offset,
			Err:    fmt.Errorf("%w: index %d, length %d", ErrIndexOutOfRange, i, len(s.items)),
		}
	}
	return s.items[i], nil
}

// Parent returns the object the sequence was split from.
func (s Sequence) Parent() Object {
	return s.parent
}
