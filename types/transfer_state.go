package types //nolint:revive // types is a valid package name

// TransferState is the lifecycle state of a multipart transfer handle.
//
//	Unopened -> Open -> Closed
//	                 -> Aborted
//
// Closed and Aborted are terminal.
type TransferState int

const (
	// TransferUnopened is the state before the store has issued a transfer id.
	TransferUnopened TransferState = iota
	// TransferOpen accepts part acknowledgments.
	TransferOpen
	// TransferClosed means the store materialized the final object.
	TransferClosed
	// TransferAborted means the transfer was abandoned.
	TransferAborted
)

// String returns the state name.
func (s TransferState) String() string {
	switch s {
	case TransferUnopened:
		return "unopened"
	case TransferOpen:
		return "open"
	case TransferClosed:
		return "closed"
	case TransferAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s TransferState) IsTerminal() bool {
	return s == TransferClosed || s == TransferAborted
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Open -> Open is legal: it is the step taken when a part ack is recorded.
func CanTransition(from, to TransferState) bool {
	switch from {
	case TransferUnopened:
		return to == TransferOpen
	case TransferOpen:
		return to == TransferOpen || to == TransferClosed || to == TransferAborted
	default:
		return false
	}
}
