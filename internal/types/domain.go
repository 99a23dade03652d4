package types

import (
	"encoding/json"
	"time"
)

// Message roles accepted on the chat endpoint. Upstream completion providers
// reject anything outside this set, so validation happens at the edge.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn of a conversation as submitted by the client.
// The full history is replayed on every request; the service keeps no
// conversation state of its own.
type Message struct {
	Role    string `json:"role" validate:"required,chat_role"`
	Content string `json:"content" validate:"required"`
}

// Plan identifies a purchasable subscription tier.
type Plan string

const (
	PlanPremium      Plan = "premium"
	PlanPremiumVoice Plan = "premium_voice"
)

// ValidPlan reports whether p names a known subscription tier.
func ValidPlan(p Plan) bool {
	return p == PlanPremium || p == PlanPremiumVoice
}

// Customer is the payment processor's record for an email address.
// A nil *Customer means the processor has never seen the address.
type Customer struct {
	ID    string
	Email string
}

// Subscription describes an active billing subscription as reported by the
// payment processor. A nil *Subscription means the customer has none.
type Subscription struct {
	ID               string
	CustomerID       string
	Plan             Plan
	Status           string
	CurrentPeriodEnd time.Time
}

// Remaining is the number of free-tier messages left in the current UTC day.
// Subscribed users are uncapped; their Remaining marshals as the string
// "unlimited" rather than a number.
type Remaining struct {
	Count     int
	Unlimited bool
}

// RemainingCount returns a bounded Remaining with n messages left.
func RemainingCount(n int) Remaining {
	if n < 0 {
		n = 0
	}
	return Remaining{Count: n}
}

// RemainingUnlimited returns the uncapped Remaining.
func RemainingUnlimited() Remaining {
	return Remaining{Unlimited: true}
}

// MarshalJSON encodes the value as either an integer or the string "unlimited".
func (r Remaining) MarshalJSON() ([]byte, error) {
	if r.Unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(r.Count)
}

// UnmarshalJSON accepts both encodings produced by MarshalJSON.
func (r *Remaining) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "unlimited" {
			*r = Remaining{Unlimited: true}
			return nil
		}
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*r = RemainingCount(n)
	return nil
}
