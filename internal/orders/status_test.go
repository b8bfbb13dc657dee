package orders

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	allStatuses = []Status{StatusPending, StatusAuthorized, StatusCaptured, StatusFailed, StatusRefunded}
	allEvents   = []EventType{EventAuthorized, EventCaptured, EventFailed, EventRefunded}
)

func TestNextExhaustive(t *testing.T) {
	legal := map[Status]map[EventType]Status{
		StatusPending:    {EventAuthorized: StatusAuthorized},
		StatusAuthorized: {EventCaptured: StatusCaptured, EventFailed: StatusFailed},
		StatusCaptured:   {EventRefunded: StatusRefunded},
	}
	for _, s := range allStatuses {
		for _, ev := range allEvents {
			want, wantOK := legal[s][ev]
			got, ok := Next(s, ev)
			assert.Equal(t, wantOK, ok, "%s + %s", s, ev)
			assert.Equal(t, want, got, "%s + %s", s, ev)
		}
	}
}

func TestNextUnknownInputs(t *testing.T) {
	_, ok := Next(Status("shipped"), EventCaptured)
	assert.False(t, ok)
	_, ok = Next(StatusPending, EventType("disputed"))
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(StatusPending))
	assert.False(t, Terminal(StatusAuthorized))
	assert.False(t, Terminal(StatusCaptured))
	assert.True(t, Terminal(StatusFailed))
	assert.True(t, Terminal(StatusRefunded))
}

func TestSource(t *testing.T) {
	cases := map[EventType]Status{
		EventAuthorized: StatusPending,
		EventCaptured:   StatusAuthorized,
		EventFailed:     StatusAuthorized,
		EventRefunded:   StatusCaptured,
	}
	for ev, want := range cases {
		got, ok := Source(ev)
		assert.True(t, ok, ev)
		assert.Equal(t, want, got, ev)
	}
}

func TestValid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.Valid(), s)
	}
	for _, ev := range allEvents {
		assert.True(t, ev.Valid(), ev)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, EventType("charge.refunded").Valid())
}

func TestDecideNamesTerminalStatus(t *testing.T) {
	for _, s := range allStatuses {
		cur := Order{ID: "o1", Status: s, LastEventAt: ts(10), Version: 3}
		for _, ev := range allEvents {
			if _, ok := Next(s, ev); ok {
				continue
			}
			out, outcome, err := Decide(cur, PaymentEvent{ID: "e1", Type: ev, OrderID: "o1", OccurredAt: ts(20)})
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, OutcomeIllegal, outcome)
			assert.Equal(t, cur, out)
			assert.Equal(t, Terminal(s), strings.Contains(err.Error(), "accepts no further events"), "%s %s", s, ev)
		}
	}
}
