package lifecycle

// State is the observable lifecycle state of the current generation.
type State int

const (
	StateUnloaded State = iota
	StatePending
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the current generation.
type Status struct {
	Generation string
	Seq        uint64
	State      State
	Err        error
}

// Status reports the current generation without suspending. It is a
// diagnostic read for tooling; program logic should use Acquire.
func (m *Manager) Status() Status {
	m.mu.Lock()
	g := m.cur
	m.mu.Unlock()

	if g == nil {
		return Status{State: StateUnloaded}
	}

	st := Status{Generation: g.id, Seq: g.seq}
	switch {
	case !g.settled():
		st.State = StatePending
	case g.err != nil:
		st.State = StateFailed
		st.Err = g.err
	case g.isDisposed():
		st.State = StateDisposed
		st.Err = g.disposeErr
	default:
		st.State = StateReady
	}
	return st
}
