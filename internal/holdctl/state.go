package holdctl

// State is the lifecycle state of a page's hold.
type State int

const (
	Idle State = iota
	Acquiring
	Held
	Releasing
	Expired
	LoginRequired
	ConflictShown
	HandedOff
	Closed
)

var stateNames = [...]string{
	Idle:          "idle",
	Acquiring:     "acquiring",
	Held:          "held",
	Releasing:     "releasing",
	Expired:       "expired",
	LoginRequired: "login_required",
	ConflictShown: "conflict",
	HandedOff:     "handed_off",
	Closed:        "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON views.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
