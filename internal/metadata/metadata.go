package metadata

import (
	"slices"
)

// Span is a byte range [Start, End) in the parsed source.
type Span struct {
	Start int
	End   int
}

// Entry is one key/value pair. Span locates the value text in the source it
// was parsed from; a nil Span marks an entry added after parsing. Line covers
// the whole declaration including its terminator and is used for deletion.
type Entry struct {
	Key   string
	Value Value
	Span  *Span
	Line  Span
	// SourceLine is the 1-based line of the declaration, 0 for new entries.
	SourceLine int

	original Value
}

// Changed reports whether the entry differs from what was parsed.
func (e Entry) Changed() bool {
	return e.Span == nil || !e.Value.Equal(e.original)
}

// Metadata is an ordered mapping from key to Entry. Keys are unique and
// case-sensitive. The zero value is not usable; call New.
type Metadata struct {
	entries []Entry
	index   map[string]int
	deleted []Entry
}

// New returns empty metadata.
func New() *Metadata {
	return &Metadata{index: map[string]int{}}
}

// add records a parsed entry. It fails on duplicate keys.
func (m *Metadata) add(e Entry) error {
	if _, dup := m.index[e.Key]; dup {
		return parseError(e.SourceLine, "duplicate key "+e.Key)
	}
	e.original = e.Value
	m.index[e.Key] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

// Len returns the number of entries.
func (m *Metadata) Len() int { return len(m.entries) }

// Keys returns keys in source order, new entries last.
func (m *Metadata) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of all entries in order.
func (m *Metadata) Entries() []Entry { return slices.Clone(m.entries) }

// Deleted returns entries removed since parsing that had a source location.
func (m *Metadata) Deleted() []Entry { return slices.Clone(m.deleted) }

// Entry returns the entry for key.
func (m *Metadata) Entry(key string) (Entry, bool) {
	i, ok := m.index[key]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// Get returns the value for key.
func (m *Metadata) Get(key string) (Value, bool) {
	e, ok := m.Entry(key)
	return e.Value, ok
}

// Lookup is Get with a not-found classified error.
func (m *Metadata) Lookup(key string) (Value, error) {
	v, ok := m.Get(key)
	if !ok {
		return Value{}, notFoundError(key)
	}
	return v, nil
}

// Set assigns a value. Existing entries keep their location; a key deleted
// earlier in this session gets its original location back; anything else is
// appended as a new entry.
func (m *Metadata) Set(key string, v Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = v
		return
	}
	e := Entry{Key: key, Value: v}
	for i, d := range m.deleted {
		if d.Key == key {
			e = d
			e.Value = v
			m.deleted = slices.Delete(m.deleted, i, i+1)
			break
		}
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, e)
}

// Delete removes key and reports whether it existed.
func (m *Metadata) Delete(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	e := m.entries[i]
	if e.Span != nil {
		m.deleted = append(m.deleted, e)
	}
	m.entries = slices.Delete(m.entries, i, i+1)
	m.reindex()
	return true
}

func (m *Metadata) reindex() {
	clear(m.index)
	for i, e := range m.entries {
		m.index[e.Key] = i
	}
}

// Clone returns an independent copy, spans included.
func (m *Metadata) Clone() *Metadata {
	out := &Metadata{
		entries: make([]Entry, len(m.entries)),
		index:   make(map[string]int, len(m.index)),
		deleted: slices.Clone(m.deleted),
	}
	for i, e := range m.entries {
		if e.Span != nil {
			span := *e.Span
			e.Span = &span
		}
		out.entries[i] = e
		out.index[e.Key] = i
	}
	return out
}

// Dirty reports whether any entry was changed, added or deleted.
func (m *Metadata) Dirty() bool {
	if len(m.deleted) > 0 {
		return true
	}
	for _, e := range m.entries {
		if e.Changed() {
			return true
		}
	}
	return false
}

// Equal compares keys, order and values, ignoring source locations.
func (m *Metadata) Equal(o *Metadata) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, e := range m.entries {
		oe := o.entries[i]
		if e.Key != oe.Key || !e.Value.Equal(oe.Value) {
			return false
		}
	}
	return true
}

// Map returns key -> Go value for reporting.
func (m *Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.entries))
	for _, e := range m.entries {
		out[e.Key] = e.Value.Interface()
	}
	return out
}

func (m *Metadata) missing(s *Schema) []string {
	var out []string
	for _, key := range s.Required() {
		if _, ok := m.index[key]; !ok {
			out = append(out, key)
		}
	}
	return out
}
