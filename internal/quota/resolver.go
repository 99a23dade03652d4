package quota

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"tutorgate/internal/types"
)

// AnonymousSender is the sentinel identity for chat requests that carry no
// email. Anonymous senders report unlimited quota and are never tracked in
// the ledger; only the per-IP rate limiter bounds them.
const AnonymousSender = "anonymous"

// BillingService is the subset of the payment processor client the resolver
// depends on.
type BillingService interface {
	// FindCustomerByEmail returns the first customer matching the email,
	// or nil when none exists.
	FindCustomerByEmail(ctx context.Context, email string) (*types.Customer, error)

	// ListActiveSubscriptions returns the customer's active subscriptions,
	// most recent first.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]types.Subscription, error)
}

// Decision is the per-request entitlement answer. It is computed fresh on
// every call and never stored.
type Decision struct {
	HasSubscription    bool
	SubscriptionStatus string
	Remaining          types.Remaining
}

// Admission extends Decision with the outcome of spending a quota unit.
type Admission struct {
	Decision
	// Allowed indicates whether the chat request may reach the completion
	// provider.
	Allowed bool
}

// Resolver decides what a sender is entitled to: subscribed users are
// uncapped, free-tier users get a fixed daily budget from the ledger.
//
// Billing lookups fail open: any processor error is logged and treated as
// "no subscription", degrading a paying user to the free tier for that
// request rather than failing it.
type Resolver struct {
	billing BillingService
	ledger  *Ledger
	limit   int
	logger  *slog.Logger

	// group deduplicates concurrent billing lookups for the same email.
	group singleflight.Group
}

// NewResolver creates a Resolver with the given daily free-tier limit.
func NewResolver(billing BillingService, ledger *Ledger, limit int, logger *slog.Logger) *Resolver {
	return &Resolver{
		billing: billing,
		ledger:  ledger,
		limit:   limit,
		logger:  logger,
	}
}

// Limit returns the configured daily free-tier budget.
func (r *Resolver) Limit() int {
	return r.limit
}

// Resolve computes entitlement for the authoritative gating path.
// Anonymous or invalid senders get zero quota here; Status is the
// optimistic counterpart for the advisory path, and the asymmetry between
// the two is deliberate.
func (r *Resolver) Resolve(ctx context.Context, email string) Decision {
	if email == AnonymousSender || !types.IsValidEmail(email) {
		return Decision{Remaining: types.RemainingCount(0)}
	}
	return r.lookup(ctx, email)
}

// Status computes entitlement for the advisory status-check path. Unlike
// Resolve, an invalid email yields the full free-tier budget: the status
// endpoint informs the client UI and must not under-report for senders the
// gate would reject anyway.
func (r *Resolver) Status(ctx context.Context, email string) Decision {
	if !types.IsValidEmail(email) {
		return Decision{Remaining: types.RemainingCount(r.limit)}
	}
	return r.lookup(ctx, email)
}

// Admit is the single quota mutation point for the chat path. Anonymous
// senders pass without touching billing or the ledger; everyone else is
// gated through Resolve: subscribed senders pass uncapped, invalid senders
// are denied outright, and free-tier senders atomically spend one unit or
// are denied once the day's budget is gone.
func (r *Resolver) Admit(ctx context.Context, email string) Admission {
	if email == AnonymousSender {
		return Admission{
			Allowed:  true,
			Decision: Decision{Remaining: types.RemainingUnlimited()},
		}
	}

	decision := r.Resolve(ctx, email)
	if decision.HasSubscription {
		return Admission{Allowed: true, Decision: decision}
	}
	if !types.IsValidEmail(email) {
		// Resolve answered zero quota without a billing lookup; there is
		// nothing to spend.
		return Admission{Decision: decision}
	}

	result := r.ledger.Admit(email, r.limit)
	decision.Remaining = types.RemainingCount(result.Remaining)
	return Admission{Allowed: result.Admitted, Decision: decision}
}

// lookup queries the billing processor for an active subscription and
// combines the answer with the ledger. Free tier: remaining is
// max(0, limit - today's count), read without mutation.
func (r *Resolver) lookup(ctx context.Context, email string) Decision {
	sub := r.activeSubscription(ctx, email)
	if sub != nil {
		return Decision{
			HasSubscription:    true,
			SubscriptionStatus: sub.Status,
			Remaining:          types.RemainingUnlimited(),
		}
	}

	return Decision{
		Remaining: types.RemainingCount(r.limit - r.ledger.Count(email)),
	}
}

// activeSubscription returns the sender's first active subscription, or nil.
// Concurrent calls for the same email share one processor round trip via
// singleflight. Processor errors are swallowed to nil with a warn log.
func (r *Resolver) activeSubscription(ctx context.Context, email string) *types.Subscription {
	v, err, _ := r.group.Do(email, func() (any, error) {
		customer, err := r.billing.FindCustomerByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return (*types.Subscription)(nil), nil
		}

		subs, err := r.billing.ListActiveSubscriptions(ctx, customer.ID)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			return (*types.Subscription)(nil), nil
		}
		return &subs[0], nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "billing lookup failed, treating as no subscription",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil
	}

	return v.(*types.Subscription)
}
