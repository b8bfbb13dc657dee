package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusCaptured   Status = "captured"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAuthorized, StatusCaptured, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// EventType is the normalized kind of a payment notification.
type EventType string

const (
	EventAuthorized EventType = "authorized"
	EventCaptured   EventType = "captured"
	EventFailed     EventType = "failed"
	EventRefunded   EventType = "refunded"
)

func (t EventType) Valid() bool {
	switch t {
	case EventAuthorized, EventCaptured, EventFailed, EventRefunded:
		return true
	}
	return false
}

// transitions is the complete set of legal (current, event) -> next moves.
// Any pair missing here is illegal.
var transitions = map[Status]map[EventType]Status{
	StatusPending:    {EventAuthorized: StatusAuthorized},
	StatusAuthorized: {EventCaptured: StatusCaptured, EventFailed: StatusFailed},
	StatusCaptured:   {EventRefunded: StatusRefunded},
	StatusFailed:     {},
	StatusRefunded:   {},
}

// Next returns the status an order moves to when ev is applied in status cur.
func Next(cur Status, ev EventType) (Status, bool) {
	next, ok := transitions[cur][ev]
	return next, ok
}

// Terminal reports whether no event can move an order out of s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Source returns the only status from which ev is legal.
func Source(ev EventType) (Status, bool) {
	for from, moves := range transitions {
		if _, ok := moves[ev]; ok {
			return from, true
		}
	}
	return "", false
}
