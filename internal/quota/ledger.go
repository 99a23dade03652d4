// Package quota tracks free-tier message consumption and decides, per chat
// request, whether a sender may proceed. The ledger is the only mutable
// state in the admission path; the resolver combines it with subscription
// status from the billing processor.
package quota

import (
	"sync"
	"time"
)

// AdmitResult is the outcome of an atomic quota admission.
type AdmitResult struct {
	// Admitted indicates whether the request may proceed.
	Admitted bool
	// Count is the post-increment count for the day when admitted, or the
	// current count when denied.
	Count int
	// Remaining is the number of admissions left in the day after this one.
	Remaining int
}

// Ledger counts chat messages per (normalized email, UTC calendar day).
// Counts live in process memory only: a restart resets everyone's usage for
// the day, which is accepted behavior for this service. Old day keys are
// never cleaned up; they are orphaned at the day boundary and accumulate
// for the life of the process.
type Ledger struct {
	mu     sync.Mutex
	counts map[string]int
	now    func() time.Time
}

// NewLedger creates an empty usage ledger.
func NewLedger() *Ledger {
	return &Ledger{
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// DayKey builds the ledger key for an email on a given instant's UTC
// calendar day. Callers must pass an already-normalized email; two spellings
// of the same mailbox must not produce distinct keys.
func DayKey(email string, at time.Time) string {
	return email + "|" + at.UTC().Format(time.DateOnly)
}

// Count returns the number of messages consumed today by email.
// Returns 0 for addresses with no usage.
func (l *Ledger) Count(email string) int {
	key := DayKey(email, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

// Increment adds one message to today's count for email and returns the
// post-increment value. The key is created at zero on first use.
func (l *Ledger) Increment(email string) int {
	key := DayKey(email, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key]
}

// Admit atomically checks today's count against limit and, if under it,
// consumes one unit. Check and increment happen under a single lock so two
// concurrent requests for the same sender cannot both pass on the last unit.
func (l *Ledger) Admit(email string, limit int) AdmitResult {
	key := DayKey(email, l.now())

	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.counts[key]
	if count >= limit {
		return AdmitResult{Admitted: false, Count: count, Remaining: 0}
	}

	count++
	l.counts[key] = count

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return AdmitResult{Admitted: true, Count: count, Remaining: remaining}
}
