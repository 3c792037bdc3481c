package store

// OutboxLen returns how many events the memory outbox still retains.
func (m *Memory) OutboxLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.outbox)
}
