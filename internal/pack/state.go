package pack

// State is the lifecycle position of a Builder.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateStaged
	StateRepaired
	StateArchived
	StateCleaned
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateStaged:
		return "staged"
	case StateRepaired:
		return "repaired"
	case StateArchived:
		return "archived"
	case StateCleaned:
		return "cleaned"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
