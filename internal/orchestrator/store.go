package orchestrator

// Store is the persistence abstraction for pending artifacts. The Registry
// uses it for all reads and writes and layers locking, id generation, and
// expiry on top; implementations need not be concurrency-safe themselves.
type Store interface {
	Get(id string) (PendingDownload, bool)
	Set(id string, d PendingDownload)
	Delete(id string)
	List() map[string]PendingDownload
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	entries map[string]PendingDownload
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]PendingDownload),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(id string) (PendingDownload, bool) {
	d, ok := s.entries[id]
	return d, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(id string, d PendingDownload) {
	s.entries[id] = d
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id string) {
	delete(s.entries, id)
}

// List implements Store.List. The returned map is a copy.
func (s *InMemoryStore) List() map[string]PendingDownload {
	out := make(map[string]PendingDownload, len(s.entries))
	for id, d := range s.entries {
		out[id] = d
	}
	return out
}
