package updater

// State is a step of one update attempt. Transitions only move forward.
type State int

const (
	StateIdle State = iota
	StateCheckingConnectivity
	StateResolvingRelease
	StateUpToDate
	StateOffline
	StateDownloading
	StateExtracting
	StateSwapping
	StateCommitted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateCheckingConnectivity: "checking-connectivity",
	StateResolvingRelease:     "resolving-release",
	StateUpToDate:             "up-to-date",
	StateOffline:              "offline",
	StateDownloading:          "downloading",
	StateExtracting:           "extracting",
	StateSwapping:             "swapping",
	StateCommitted:            "committed",
	StateFailed:               "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(?)"
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateUpToDate, StateOffline, StateCommitted, StateFailed:
		return true
	}
	return false
}
