package routinemanager

// Manager hands out a fixed number of tokens. Holding a token is permission to run one
// session.
type Manager struct {
	channel     chan uint16
	maxRoutines uint16
}

func NewManager(maxRoutines uint16) *Manager {
	if maxRoutines == 0 {
		maxRoutines = 1
	}
	m := &Manager{
		maxRoutines: maxRoutines,
		channel:     make(chan uint16, maxRoutines),
	}
	for i := uint16(0); i < maxRoutines; i++ {
		m.channel <- i
	}
	return m
}

// Lock blocks until a token is free and returns it.
func (m *Manager) Lock() uint16 {
	return <-m.channel
}

// Unlock returns a token taken by Lock.
func (m *Manager) Unlock(i uint16) {
	m.channel <- i
}

// Max is the number of tokens.
func (m *Manager) Max() uint16 {
	return m.maxRoutines
}
