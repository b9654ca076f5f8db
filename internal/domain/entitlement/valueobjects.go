// Package entitlement provides domain models and business logic for the
// generation-credit entitlement of a single installed app instance. An
// account is keyed by an opaque device identifier; subscription transactions
// reported by the billing platform are recorded against it.
package entitlement

// Plan represents the subscription plan tag. The empty plan is the free tier.
type Plan string

// PlanNone is the free tier: no subscription recorded.
const PlanNone Plan = ""

// IsSubscribed reports whether the plan denotes a paid tier.
func (p Plan) IsSubscribed() bool {
	return p != PlanNone
}

// String returns the string representation of the plan
func (p Plan) String() string {
	return string(p)
}

// TransactionReason represents why the billing platform emitted a transaction
type TransactionReason string

const (
	// ReasonPurchase indicates an initial purchase
	ReasonPurchase TransactionReason = "purchase"
	// ReasonRenewal indicates a recurring billing-period renewal
	ReasonRenewal TransactionReason = "renewal"
	// ReasonOther covers reasons this system does not act on
	ReasonOther TransactionReason = "other"
)

// IsValid checks if the transaction reason is valid
func (r TransactionReason) IsValid() bool {
	switch r {
	case ReasonPurchase, ReasonRenewal, ReasonOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of the transaction reason
func (r TransactionReason) String() string {
	return string(r)
}

// Platform represents the billing platform that produced a transaction
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// IsValid checks if the platform is valid
func (p Platform) IsValid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid:
		return true
	default:
		return false
	}
}

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// Environment represents the store environment a transaction came from
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvironmentProduction, EnvironmentSandbox:
		return true
	default:
		return false
	}
}

// String returns the string representation of the environment
func (e Environment) String() string {
	return string(e)
}
