package session

import "sync"

type key struct {
	userID int64
	chatID int64
}

type conversation struct {
	state State
	data  map[string]int64
	lock  *sync.Mutex
}

type memoryManager struct {
	mu            sync.RWMutex
	conversations map[key]*conversation
}

// NewMemoryManager constructs the in-memory Manager implementation. State is
// lost on restart, which only ever forces a user to restart a dialog step.
func NewMemoryManager() Manager {
	return &memoryManager{
		conversations: make(map[key]*conversation),
	}
}

// conv returns the conversation for a key, creating it if needed.
// Callers must hold mu.
func (m *memoryManager) conv(k key) *conversation {
	c, ok := m.conversations[k]
	if !ok {
		c = &conversation{data: make(map[string]int64), lock: &sync.Mutex{}}
		m.conversations[k] = c
	}
	return c
}

func (m *memoryManager) State(userID, chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.conversations[key{userID, chatID}]; ok {
		return c.state
	}
	return StateNone
}

func (m *memoryManager) SetState(userID, chatID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conv(key{userID, chatID}).state = state
}

func (m *memoryManager) ClearState(userID, chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conversations[key{userID, chatID}]; ok {
		c.state = StateNone
		c.data = make(map[string]int64)
	}
}

func (m *memoryManager) InProgress(userID, chatID int64) bool {
	return m.State(userID, chatID) != StateNone
}

func (m *memoryManager) SetData(userID, chatID int64, dataKey string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.conv(key{userID, chatID}).data[dataKey] = value
}

func (m *memoryManager) Data(userID, chatID int64, dataKey string) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[key{userID, chatID}]
	if !ok {
		return 0, false
	}
	value, ok := c.data[dataKey]
	return value, ok
}

func (m *memoryManager) Lock(userID, chatID int64) func() {
	m.mu.Lock()
	c := m.conv(key{userID, chatID})
	m.mu.Unlock()

	c.lock.Lock()
	return c.lock.Unlock
}
