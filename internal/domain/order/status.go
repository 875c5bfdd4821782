package order

import "fmt"

// Status is an order's position in the fulfilment state machine.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusAccepted   Status = "Accepted"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// transitions maps each status to the set of statuses reachable from it.
// Cancellation is possible until delivery; Delivered and Cancelled are
// terminal.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a state machine violation.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}
