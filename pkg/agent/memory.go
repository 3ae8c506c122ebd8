package agent

import (
	"sync"

	"github.com/nestor-ai/nestor/pkg/llms"
)

// MemoryStore holds conversational working memory, one thread per
// conversation id. Each agent owns its own store; threads under different
// ids never interleave, which is what keeps concurrent requests isolated
// even though the agent object is shared.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string][]llms.Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]llms.Message)}
}

// Thread returns a copy of the messages stored under id.
func (m *MemoryStore) Thread(id string) []llms.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread := m.threads[id]
	out := make([]llms.Message, len(thread))
	copy(out, thread)
	return out
}

// Replace stores the thread under id, superseding any previous state.
func (m *MemoryStore) Replace(id string, messages []llms.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]llms.Message, len(messages))
	copy(stored, messages)
	m.threads[id] = stored
}

// Reset drops one thread.
func (m *MemoryStore) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, id)
}

// Clear drops every thread.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads = make(map[string][]llms.Message)
}
