package pack

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// yamlCatalog mirrors the on-disk catalog layout.
type yamlCatalog struct {
	Packs []yamlPack `yaml:"packs"`
}

type yamlPack struct {
	ID             string          `yaml:"id"`
	Name           string          `yaml:"name"`
	Kind           string          `yaml:"kind"`
	Description    string          `yaml:"description"`
	Price          string          `yaml:"price"`
	Currency       string          `yaml:"currency"`
	DurationDays   int             `yaml:"duration_days"`
	DiscountPct    int             `yaml:"discount_pct"`
	Active         bool            `yaml:"active"`
	TrialWeekOffer bool            `yaml:"trial_week_offer"`
	Entitlement    yamlEntitlement `yaml:"entitlement"`
}

type yamlEntitlement struct {
	MaxCoursesPerMonth int  `yaml:"max_courses_per_month"`
	MaxQuizzesPerMonth int  `yaml:"max_quizzes_per_month"`
	MaxExamsPerMonth   int  `yaml:"max_exams_per_month"`
	PremiumContent     bool `yaml:"premium_content"`
	AIStandard         bool `yaml:"ai_standard"`
	AIPriority         bool `yaml:"ai_priority"`
	Certificates       bool `yaml:"certificates"`
	OfflineContent     bool `yaml:"offline_content"`
	Community          bool `yaml:"community"`
	PrioritySupport    bool `yaml:"priority_support"`
	MaxChildren        int  `yaml:"max_children"`
	SeparateProfiles   bool `yaml:"separate_profiles"`
}

// NewYAMLSource loads a pack catalog from a YAML file and serves it from
// memory. The file is read once; catalog changes require a restart, which
// keeps lookups allocation-free and lock-cheap on the hot purchase path.
func NewYAMLSource(path string) (Source, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPacks, err)
	}

	var catalog yamlCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, errors.Join(ErrFailedToLoadPacks, err)
	}
	if len(catalog.Packs) == 0 {
		return nil, fmt.Errorf("%w: %s defines no packs", ErrFailedToLoadPacks, path)
	}

	packs := make([]Pack, 0, len(catalog.Packs))
	for _, yp := range catalog.Packs {
		p, err := yp.toPack()
		if err != nil {
			return nil, errors.Join(ErrFailedToLoadPacks, err)
		}
		packs = append(packs, p)
	}

	return NewInMemSource(packs...)
}

func (yp yamlPack) toPack() (Pack, error) {
	id, err := uuid.Parse(yp.ID)
	if err != nil {
		return Pack{}, fmt.Errorf("pack %q: invalid id: %w", yp.Name, err)
	}

	price := decimal.Zero
	if yp.Price != "" {
		price, err = decimal.NewFromString(yp.Price)
		if err != nil {
			return Pack{}, fmt.Errorf("pack %q: invalid price %q: %w", yp.Name, yp.Price, err)
		}
	}

	return Pack{
		ID:             id,
		Name:           yp.Name,
		Kind:           Kind(yp.Kind),
		Description:    yp.Description,
		Price:          price,
		Currency:       yp.Currency,
		DurationDays:   yp.DurationDays,
		DiscountPct:    yp.DiscountPct,
		Active:         yp.Active,
		TrialWeekOffer: yp.TrialWeekOffer,
		Entitlement: Entitlement{
			MaxCoursesPerMonth: yp.Entitlement.MaxCoursesPerMonth,
			MaxQuizzesPerMonth: yp.Entitlement.MaxQuizzesPerMonth,
			MaxExamsPerMonth:   yp.Entitlement.MaxExamsPerMonth,
			PremiumContent:     yp.Entitlement.PremiumContent,
			AIStandard:         yp.Entitlement.AIStandard,
			AIPriority:         yp.Entitlement.AIPriority,
			Certificates:       yp.Entitlement.Certificates,
			OfflineContent:     yp.Entitlement.OfflineContent,
			Community:          yp.Entitlement.Community,
			PrioritySupport:    yp.Entitlement.PrioritySupport,
			MaxChildren:        yp.Entitlement.MaxChildren,
			SeparateProfiles:   yp.Entitlement.SeparateProfiles,
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}
