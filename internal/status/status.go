package status

// Status represents a message delivery status as reported to the UI.
type Status string

const (
	Pending   Status = "pending"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
	Failed    Status = "failed"
)

// rank orders the normal delivery progression. Failed is outside the
// lattice: it is reachable from Pending only and terminal.
var rank = map[Status]int{
	Pending:   0,
	Sent:      1,
	Delivered: 2,
	Read:      3,
}

// Rank returns the position of s in the delivery progression, or -1 for
// Failed and unknown statuses.
func Rank(s Status) int {
	r, ok := rank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	return s == Failed || Rank(s) >= 0
}

// Merge returns the status to hold after the remote store reports
// `reported` for a message currently held at `current`. Status never moves
// backwards; a backwards report is ignored and flagged so the caller can
// log it. The only transition outside the progression is Pending -> Failed.
func Merge(current, reported Status) (next Status, regressed bool) {
	if reported == Failed {
		if current == Pending {
			return Failed, false
		}
		return current, true
	}
	if current == Failed {
		return current, true
	}
	if Rank(reported) < Rank(current) {
		return current, true
	}
	return reported, false
}
