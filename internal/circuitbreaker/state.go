package circuitbreaker

type State int

const (
	// StateClosed - calls pass through to the upstream
	StateClosed State = iota

	// StateOpen - calls fail fast with ErrCircuitOpen
	StateOpen

	// StateHalfOpen - a single probe call decides the next state
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
