package directory

import "time"

// Kind classifies a directory entry.
type Kind int

const (
	// KindContainer entries are synthesized so that every ancestor of a real
	// entry resolves. They carry no attributes and no source record.
	KindContainer Kind = iota
	KindUser
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindGroup:
		return "group"
	default:
		return "container"
	}
}

// Entry is a single directory entry inside a snapshot.
type Entry struct {
	DN         DN
	Kind       Kind
	Attributes map[string][]string

	// Source is the upstream record the entry was rendered from
	// (*okta.User or *okta.Group), nil for containers.
	Source any
}

// BuildStats describes one snapshot build.
type BuildStats struct {
	BuiltAt    time.Time
	Users      int
	Groups     int
	Containers int

	// Collisions counts entries that overwrote an earlier entry at the
	// same DN. Non-zero values usually indicate a DN template problem.
	Collisions int
}

// Snapshot is an immutable point-in-time directory: a DN-keyed entry map
// plus the insertion order, so that repeated builds over identical upstream
// data iterate identically. Snapshots are never mutated after publication;
// readers may hold one while a newer snapshot is being built.
type Snapshot struct {
	entries map[string]*Entry
	order   []string
	Stats   BuildStats
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		entries: make(map[string]*Entry),
		Stats:   BuildStats{BuiltAt: time.Now()},
	}
}

// insert stores an entry, reporting whether it replaced an existing one.
// A replaced entry keeps its original iteration position.
func (s *Snapshot) insert(e *Entry) bool {
	key := e.DN.Key()
	_, replaced := s.entries[key]
	if !replaced {
		s.order = append(s.order, key)
	}
	s.entries[key] = e
	return replaced
}

// Lookup returns the entry at the given DN.
func (s *Snapshot) Lookup(dn DN) (*Entry, bool) {
	e, ok := s.entries[dn.Key()]
	return e, ok
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// Entries returns all entries in insertion order.
func (s *Snapshot) Entries() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out
}
