package usecases

import "context"

// Notifier receives the side-effect callbacks the presentation layer reacts
// to. Callbacks fire synchronously after a successful state transition;
// implementations must not block.
type Notifier interface {
	// SubscriptionActivated fires after a plan is set and credits reset.
	SubscriptionActivated(plan string)

	// GenerationUsed fires after each successful consumption with the new
	// remaining balance.
	GenerationUsed(remaining int)

	// LimitReached fires exactly when the balance transitions to zero.
	// needsUpgrade is true on the free tier (must subscribe), false on the
	// paid tier (must wait for renewal).
	LimitReached(needsUpgrade bool)
}

// NopNotifier discards all callbacks.
type NopNotifier struct{}

func (NopNotifier) SubscriptionActivated(string) {}
func (NopNotifier) GenerationUsed(int)           {}
func (NopNotifier) LimitReached(bool)            {}

// PurchaseFeed is the acknowledgement half of the subscription event feed.
// Finish tells the billing platform a purchase-success event was fully
// processed so it is not redelivered.
type PurchaseFeed interface {
	Finish(ctx context.Context, transactionID string) error
}

// NopPurchaseFeed acknowledges into the void. Used when the embedding app
// wires no store connection (tests, dry runs).
type NopPurchaseFeed struct{}

func (NopPurchaseFeed) Finish(context.Context, string) error { return nil }
