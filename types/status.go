package types

// Status is the leadership outcome of a single tick.
type Status int

const (
	// StatusFollower means this process is not the leader for the current tick.
	StatusFollower Status = iota
	// StatusLeader means this process holds the lease for the current tick.
	StatusLeader
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusLeader:
		return "Leader"
	case StatusFollower:
		return "Follower"
	default:
		return "Unknown"
	}
}

// IsLeader reports whether s is StatusLeader.
func (s Status) IsLeader() bool {
	return s == StatusLeader
}

// Action is the write path a tick took.
type Action int

const (
	// ActionNone means the tick was abandoned before choosing a path.
	ActionNone Action = iota
	// ActionAcquire means the tick attempted to take the lease.
	ActionAcquire
	// ActionRenew means the tick attempted to refresh its own lease.
	ActionRenew
	// ActionYield means the lease is validly held by another identity; no write.
	ActionYield
	// ActionRelease means the holder gave the lease up voluntarily.
	ActionRelease
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAcquire:
		return "acquire"
	case ActionRenew:
		return "renew"
	case ActionYield:
		return "yield"
	case ActionRelease:
		return "release"
	default:
		return "unknown"
	}
}
