package metadata

import (
	werrors "github.com/ecspool/weaver/internal/errors"
)

// Snapshot is the immutable set of class records for one run. It is safe
// for concurrent readers once Extract has returned it.
type Snapshot struct {
	conv    Convention
	classes map[string]*ClassMetadata
	names   []string
}

func newSnapshot(classes map[string]*ClassMetadata, conv Convention) *Snapshot {
	return &Snapshot{
		conv:    conv,
		classes: classes,
		names:   sortedNames(classes),
	}
}

// Convention returns the naming convention the snapshot was resolved with
func (s *Snapshot) Convention() Convention {
	return s.conv
}

// Lookup returns the record for a class under transformation
func (s *Snapshot) Lookup(name string) (*ClassMetadata, bool) {
	m, ok := s.classes[name]
	return m, ok
}

// Names returns every class name in lexical order
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of classes
func (s *Snapshot) Len() int {
	return len(s.names)
}

// Classes returns every record ordered by name
func (s *Snapshot) Classes() []*ClassMetadata {
	out := make([]*ClassMetadata, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.classes[name])
	}
	return out
}

// Poolable returns the poolable records ordered by name
func (s *Snapshot) Poolable() []*ClassMetadata {
	var out []*ClassMetadata
	for _, name := range s.names {
		if m := s.classes[name]; m.Poolable {
			out = append(out, m)
		}
	}
	return out
}

// Pending returns the records the pipeline rewrites, ordered by name
func (s *Snapshot) Pending() []*ClassMetadata {
	var out []*ClassMetadata
	for _, name := range s.names {
		if m := s.classes[name]; m.NeedsWeaving() {
			out = append(out, m)
		}
	}
	return out
}

// NearestReset walks the declared ancestry of name, starting at its direct
// superclass, and returns the first class in the snapshot that declares the
// reset method or will have one injected. It returns false when the walk
// leaves the snapshot first.
func (s *Snapshot) NearestReset(name string) (*ClassMetadata, bool) {
	m, ok := s.classes[name]
	for i := 0; ok && i < len(s.names); i++ {
		m, ok = s.classes[m.SuperclassName]
		if ok && (m.HasReset || m.NeedsWeaving()) {
			return m, true
		}
	}
	return nil, false
}

// Chain traces the effective ancestry of name: the class itself, then each
// effective superclass while it stays inside the snapshot, then the first
// name outside it (the pooled base, java/lang/Object, or a library class).
func (s *Snapshot) Chain(name string) []string {
	chain := []string{name}
	cur, ok := s.classes[name]
	for ok && cur.EffectiveSuperclassName != "" && len(chain) <= len(s.names) {
		next := cur.EffectiveSuperclassName
		chain = append(chain, next)
		cur, ok = s.classes[next]
	}
	return chain
}

// Substitutions counts the points on name's effective chain where a class is
// re-parented onto the pooled base.
func (s *Snapshot) Substitutions(name string) int {
	n := 0
	for _, c := range s.Chain(name) {
		if m, ok := s.classes[c]; ok && m.Root {
			n++
		}
	}
	return n
}

type visitState uint8

const (
	unvisited visitState = iota
	visiting
	done
)

// resolve derives Poolable, AlreadyPooled, Root and EffectiveSuperclassName
// for every class. A superclass outside the snapshot is a non-poolable leaf.
func (s *Snapshot) resolve() error {
	state := make(map[string]visitState, len(s.classes))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		m := s.classes[name]
		switch state[name] {
		case done:
			return nil
		case visiting:
			return werrors.NewCyclicAncestry(cycleFrom(stack, name))
		}
		state[name] = visiting
		stack = append(stack, name)

		superPoolable := false
		superPooled := m.SuperclassName == s.conv.PooledBase
		if super, ok := s.classes[m.SuperclassName]; ok {
			if err := visit(super.QualifiedName); err != nil {
				return err
			}
			superPoolable = super.Poolable
			superPooled = superPooled || super.AlreadyPooled
		}

		m.Poolable = m.Marked || superPoolable
		m.AlreadyPooled = superPooled
		m.Root = m.Poolable && !superPoolable && !superPooled
		m.EffectiveSuperclassName = m.SuperclassName
		if m.Root {
			m.EffectiveSuperclassName = s.conv.PooledBase
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range s.names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// cycleFrom returns the part of stack starting at name, closed with name
func cycleFrom(stack []string, name string) []string {
	for i, n := range stack {
		if n == name {
			cycle := append([]string(nil), stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}
