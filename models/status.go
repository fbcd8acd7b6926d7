package models

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
)

// Older deployments wrote "accepted"/"cancelled" for the same two
// states. NormalizeRequestStatus maps either naming onto the canonical
// enum; unknown values come back as-is with ok=false.
func NormalizeRequestStatus(s string) (RequestStatus, bool) {
	switch RequestStatus(s) {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return RequestStatus(s), true
	case "accepted":
		return StatusApproved, true
	case "cancelled":
		return StatusRejected, true
	}
	return RequestStatus(s), false
}

// transitions is the one-directional lifecycle table. Completion is
// deliberately absent: a request only becomes completed through the
// donation engine, never through a plain status write.
var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusRejected},
}

// CanTransition reports whether a plain status update from one state
// to another is allowed.
func CanTransition(from, to RequestStatus) bool {
	if from == to {
		return false
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle changes are possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}
