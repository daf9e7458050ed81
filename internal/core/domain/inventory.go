package domain

import "time"

// Account is a leasable credential record with finite concurrent-use
// capacity and an expiry. Index is the record's stable position inside its
// product's collection; Version guards reservations (optimistic locking).
type Account struct {
	Index        int
	Email        string
	Password     string
	CurrentUsers int
	MaxUsers     int
	ExpiresAt    time.Time
	LastUsed     time.Time
	Version      int
}

// Remaining reports the unreserved capacity left on the account.
func (a Account) Remaining() int {
	return a.MaxUsers - a.CurrentUsers
}

// EligibleFor reports whether the account can cover a lease of the given
// quantity: not expired and enough remaining capacity.
func (a Account) EligibleFor(now time.Time, quantity int) bool {
	return !a.ExpiresAt.Before(now) && a.Remaining() >= quantity
}

// Product owns an ordered collection of accounts. The order carries no
// meaning beyond providing a stable index for updates and tie-breaking.
type Product struct {
	ID       string
	Accounts []Account
}
