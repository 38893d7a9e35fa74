package semi

// Length exposes the class table's length magic method to host code (used
// by cmd/semi's `len` native), the same dispatch opLen uses internally.
func Length(v Value) (int, error) {
	m := classFor(v)
	if m == nil || m.length == nil {
		return 0, &SemiError{ID: ErrUnexpectedType}
	}
	return m.length(nil, v)
}

// AppendToList appends item to a list value in place, for host natives like
// cmd/semi's `append` that need list mutation without going through
// SET_ITEM's single-index replace semantics.
func AppendToList(v, item Value) error {
	if v.Kind() != KindList {
		return &SemiError{ID: ErrUnexpectedType, Message: "append requires a list"}
	}
	l := v.asList()
	l.items = append(l.items, item)
	return nil
}
