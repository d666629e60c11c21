package pack

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the tier variant of a pack.
type Kind string

const (
	KindFree     Kind = "free"
	KindStandard Kind = "standard"
	KindPremium  Kind = "premium"
	KindSpecial  Kind = "special"
	KindFamily   Kind = "family"
)

// Valid reports whether the kind is one of the known tier variants.
func (k Kind) Valid() bool {
	switch k {
	case KindFree, KindStandard, KindPremium, KindSpecial, KindFamily:
		return true
	}
	return false
}

// Entitlement holds the monthly quotas and feature flags granted by a pack.
// A quota of 0 means unlimited.
type Entitlement struct {
	MaxCoursesPerMonth int
	MaxQuizzesPerMonth int
	MaxExamsPerMonth   int

	PremiumContent  bool
	AIStandard      bool
	AIPriority      bool
	Certificates    bool
	OfflineContent  bool
	Community       bool
	PrioritySupport bool

	// Family packs only.
	MaxChildren      int
	SeparateProfiles bool
}

// Pack is a purchasable subscription tier definition. Packs are referenced,
// never owned, by subscriptions: deleting a pack does not cascade.
type Pack struct {
	ID           uuid.UUID
	Name         string
	Kind         Kind
	Description  string
	Price        decimal.Decimal
	Currency     string
	DurationDays int
	DiscountPct  int
	Active       bool
	// TrialWeekOffer marks packs that may be started as a free one-week trial.
	TrialWeekOffer bool
	Entitlement    Entitlement
	CreatedAt      time.Time
}

// EffectivePrice returns the price after the pack discount, rounded to whole
// currency units. All arithmetic is decimal; no floats touch money.
func (p Pack) EffectivePrice() decimal.Decimal {
	if p.DiscountPct <= 0 {
		return p.Price.Round(0)
	}
	factor := decimal.NewFromInt(1).Sub(
		decimal.NewFromInt(int64(p.DiscountPct)).Div(decimal.NewFromInt(100)))
	return p.Price.Mul(factor).Round(0)
}

// IsFamily reports whether the pack fans out to linked children on settlement.
func (p Pack) IsFamily() bool {
	return p.Kind == KindFamily
}
