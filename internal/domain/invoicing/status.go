package invoicing

// Status is the lifecycle state of an invoice
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusCancelled     Status = "cancelled"
)

// transitions lists every allowed move. Anything absent is rejected.
var transitions = map[Status][]Status{
	StatusDraft:         {StatusSent},
	StatusSent:          {StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusDraft, StatusCancelled},
	StatusPartiallyPaid: {StatusPartiallyPaid, StatusPaid, StatusSent, StatusOverdue, StatusDraft, StatusCancelled},
	StatusPaid:          {StatusPartiallyPaid, StatusSent, StatusOverdue, StatusDraft, StatusCancelled},
	StatusOverdue:       {StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusDraft, StatusCancelled},
	StatusCancelled:     {},
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one move
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanReceivePayment returns true for statuses that accept a payment
func (s Status) CanReceivePayment() bool {
	return s == StatusSent || s == StatusPartiallyPaid || s == StatusOverdue
}

// IsOutstanding returns true for statuses that count toward the owner's debt
func (s Status) IsOutstanding() bool {
	return s == StatusSent || s == StatusPartiallyPaid || s == StatusOverdue
}

// IsIssued returns true once the invoice has left draft and is not cancelled
func (s Status) IsIssued() bool {
	return s == StatusSent || s == StatusPartiallyPaid || s == StatusPaid || s == StatusOverdue
}
