package session

import (
	"sync"

	"github.com/cornelk/hashmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry maps peripheral identifiers to their sessions. An identifier is
// registered once; later registrations of the same id are dropped until the
// first session is removed.
type Registry struct {
	sessions *hashmap.Map[string, *Session]

	mu    sync.Mutex
	order *orderedmap.OrderedMap[string, *Session]
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: hashmap.New[string, *Session](),
		order:    orderedmap.New[string, *Session](),
	}
}

// Register inserts s unless its id is already present. It returns the
// registered session and whether s was inserted.
func (r *Registry) Register(s *Session) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actual, loaded := r.sessions.GetOrInsert(s.ID(), s)
	if loaded {
		return actual, false
	}
	r.order.Set(s.ID(), s)
	return s, true
}

func (r *Registry) Get(id string) (*Session, bool) {
	return r.sessions.Get(id)
}

// release removes s only if it is still the session registered for its id
func (r *Registry) release(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions.Get(s.ID())
	if !ok || current != s {
		return false
	}
	r.sessions.Del(s.ID())
	r.order.Delete(s.ID())
	return true
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}

// IDs returns the registered identifiers in registration order
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, r.order.Len())
	for pair := r.order.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Sessions returns the registered sessions in registration order
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, r.order.Len())
	for pair := r.order.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Range calls fn for every session in registration order until fn returns false.
// fn runs on a snapshot and may modify the registry.
func (r *Registry) Range(fn func(*Session) bool) {
	for _, s := range r.Sessions() {
		if !fn(s) {
			return
		}
	}
}
