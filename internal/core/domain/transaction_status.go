package domain

import "fmt"

// TransactionStatus represents the different statuses that an escrow
// transaction can assume.
type TransactionStatus int

const (
	TransactionStatusUndefined TransactionStatus = iota
	TransactionStatusPending
	TransactionStatusConfirmed
	TransactionStatusCompleted
	TransactionStatusCancelled
	TransactionStatusDisputed
	TransactionStatusRefunded
)

var (
	statusToString = map[TransactionStatus]string{
		TransactionStatusUndefined: "UNDEFINED",
		TransactionStatusPending:   "PENDING",
		TransactionStatusConfirmed: "CONFIRMED",
		TransactionStatusCompleted: "COMPLETED",
		TransactionStatusCancelled: "CANCELLED",
		TransactionStatusDisputed:  "DISPUTED",
		TransactionStatusRefunded:  "REFUNDED",
	}
	stringToStatus = map[string]TransactionStatus{
		"PENDING":   TransactionStatusPending,
		"CONFIRMED": TransactionStatusConfirmed,
		"COMPLETED": TransactionStatusCompleted,
		"CANCELLED": TransactionStatusCancelled,
		"DISPUTED":  TransactionStatusDisputed,
		"REFUNDED":  TransactionStatusRefunded,
	}

	// allowedTransitions lists, for every status, the statuses that can follow.
	// Terminal statuses map to an empty set.
	allowedTransitions = map[TransactionStatus][]TransactionStatus{
		TransactionStatusUndefined: {TransactionStatusPending},
		TransactionStatusPending: {
			TransactionStatusConfirmed,
			TransactionStatusDisputed,
			TransactionStatusCancelled,
		},
		TransactionStatusConfirmed: {
			TransactionStatusCompleted,
			TransactionStatusDisputed,
		},
		TransactionStatusDisputed:  {TransactionStatusRefunded},
		TransactionStatusCompleted: {},
		TransactionStatusCancelled: {},
		TransactionStatusRefunded:  {},
	}
)

// TransactionStatusFromString parses the canonical label of a status.
func TransactionStatusFromString(str string) (TransactionStatus, bool) {
	status, ok := stringToStatus[str]
	return status, ok
}

// AllTransactionStatuses returns every valid status in lifecycle order.
func AllTransactionStatuses() []TransactionStatus {
	return []TransactionStatus{
		TransactionStatusPending,
		TransactionStatusConfirmed,
		TransactionStatusCompleted,
		TransactionStatusCancelled,
		TransactionStatusDisputed,
		TransactionStatusRefunded,
	}
}

func (s TransactionStatus) String() string {
	str, ok := statusToString[s]
	if !ok {
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
	return str
}

// Valid reports whether the status is one of the six lifecycle statuses.
func (s TransactionStatus) Valid() bool {
	return s >= TransactionStatusPending && s <= TransactionStatusRefunded
}

// IsTerminal returns whether no further transition is permitted from s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted,
		TransactionStatusCancelled,
		TransactionStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns whether next is a legal successor of s.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, st := range allowedTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TransactionStatus) UnmarshalText(text []byte) error {
	status, ok := TransactionStatusFromString(string(text))
	if !ok {
		return fmt.Errorf("unknown transaction status %q", string(text))
	}
	*s = status
	return nil
}

// PartyRole identifies which side of a transaction an actor claims to be.
type PartyRole int

const (
	PartyRoleUnspecified PartyRole = iota
	PartyRoleBuyer
	PartyRoleSeller
)

// PartyRoleFromString parses "buyer" or "seller".
func PartyRoleFromString(str string) (PartyRole, bool) {
	switch str {
	case "buyer":
		return PartyRoleBuyer, true
	case "seller":
		return PartyRoleSeller, true
	default:
		return PartyRoleUnspecified, false
	}
}

func (r PartyRole) String() string {
	switch r {
	case PartyRoleBuyer:
		return "buyer"
	case PartyRoleSeller:
		return "seller"
	default:
		return "unspecified"
	}
}
