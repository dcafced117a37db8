package orders

// Order lifecycle statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusPaid       = "PAID"
	StatusCancelled  = "CANCELLED"
	StatusRefunded   = "REFUNDED"
)

// validTransitions encodes the order state machine. CANCELLED and REFUNDED
// are terminal; a partially refunded order stays PAID. PENDING may jump
// straight to PAID when the gateway webhook outruns payment initiation.
var validTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusPaid, StatusCancelled},
	StatusProcessing: {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// statusOrder fixes the iteration order for transitionsInto
var statusOrder = []string{StatusPending, StatusProcessing, StatusPaid, StatusCancelled, StatusRefunded}

// CanTransition reports whether an order may move from one status to another
func CanTransition(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transitionsInto lists the statuses allowed to move into the target. The
// guarded repository updates use it as their status precondition, so the
// conditional UPDATEs and the state machine can never drift apart.
func transitionsInto(to string) []string {
	from := make([]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		if CanTransition(status, to) {
			from = append(from, status)
		}
	}
	return from
}
