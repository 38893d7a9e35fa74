package semi

// symbolTable interns identifier text to a monotonically increasing ID
// (spec §3 Symbol table), the same scheme original_source's symbol_table.h
// describes: identifiers that compare equal as strings always get the same
// ID, which lets later compiler stages compare symbols by integer instead
// of restring-comparing every lookup.
//
// Built directly on a Go map rather than dictObject: the symbol table is a
// compile-time-only structure, never visible to running Semi code and
// never walked by the GC, so it gets the plain host-language map the way
// gothird's own symbol interner does (internal/ident's table), not the
// heap-managed dict reserved for language-visible collections.
type symbolTable struct {
	ids   map[string]uint32
	names []string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{ids: make(map[string]uint32)}
}

// intern returns name's ID, assigning the next monotonic ID on first sight.
func (s *symbolTable) intern(name string) uint32 {
	if id, ok := s.ids[name]; ok {
		return id
	}
	id := uint32(len(s.names))
	s.ids[name] = id
	s.names = append(s.names, name)
	return id
}

// lookup returns name's ID without interning, for contexts where an
// unseen identifier is an error (e.g. referencing an undeclared export).
func (s *symbolTable) lookup(name string) (uint32, bool) {
	id, ok := s.ids[name]
	return id, ok
}

// name returns the interned text for id, for diagnostics.
func (s *symbolTable) name(id uint32) string {
	if int(id) >= len(s.names) {
		return "<unknown>"
	}
	return s.names[id]
}

func (s *symbolTable) len() int { return len(s.names) }
