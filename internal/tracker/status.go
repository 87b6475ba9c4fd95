package tracker

// Status is the state of the polling loop.
type Status int32

const (
	// Idle is waiting for the next tick, or for a retry.
	Idle Status = iota
	// Polling is running a cycle.
	Polling
	// Failed gave up after too many consecutive failures.
	Failed
	// Stopped was canceled.
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
