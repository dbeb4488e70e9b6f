package extractor

// XRefTable maps the node id of an in-class method declaration to the class
// it was declared in, so out-of-line definitions can find their owner
// through previousDecl.
type XRefTable struct {
	entries map[string]*ClassContext
}

func NewXRefTable() *XRefTable {
	return &XRefTable{entries: make(map[string]*ClassContext)}
}

func (t *XRefTable) Record(id string, owner *ClassContext) {
	t.entries[id] = owner
}

// Resolve looks up a declaration id. Empty ids never resolve.
func (t *XRefTable) Resolve(id string) (*ClassContext, bool) {
	if id == "" {
		return nil, false
	}
	owner, ok := t.entries[id]
	return owner, ok
}

func (t *XRefTable) Len() int { return len(t.entries) }
