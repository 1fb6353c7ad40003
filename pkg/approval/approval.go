// Package approval models the pending/approved/rejected outcome shared by
// group memberships and check-in reviews.
package approval

import "database/sql"

// State is a tri-state review outcome
type State string

const (
	Pending  State = "PENDING"
	Approved State = "APPROVED"
	Rejected State = "REJECTED"
)

// FromNullBool converts the nullable column representation (NULL, TRUE, FALSE)
func FromNullBool(b sql.NullBool) State {
	switch {
	case !b.Valid:
		return Pending
	case b.Bool:
		return Approved
	default:
		return Rejected
	}
}

// NullBool is the inverse of FromNullBool
func (s State) NullBool() sql.NullBool {
	switch s {
	case Approved:
		return sql.NullBool{Bool: true, Valid: true}
	case Rejected:
		return sql.NullBool{Bool: false, Valid: true}
	default:
		return sql.NullBool{}
	}
}

// Resolved reports whether a decision has been made
func (s State) Resolved() bool {
	return s == Approved || s == Rejected
}
