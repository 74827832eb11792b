package tiers

import (
	"fmt"

	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
)

// ErrUnknownTier is returned for tier ids outside the closed registry set.
// Hitting it indicates a programming error, not user input.
var ErrUnknownTier = fmt.Errorf("unknown tier")

// Unlimited marks a quota the tier never exhausts.
const Unlimited = dbtypes.Unlimited

// Definition is a tier registry entry. Definitions are immutable at runtime;
// tier changes ship as a new registry version, never an in-place edit.
type Definition struct {
	Name     string
	Limits   dbtypes.LimitSet
	Features dbtypes.FeatureSet
}

var registry = map[enums.Tier]Definition{
	enums.TierFree: {
		Name: "Free",
		Limits: dbtypes.LimitSet{
			enums.QuotaGuestRecords:      500,
			enums.QuotaLocations:         1,
			enums.QuotaReceiptProcessing: 50,
			enums.QuotaCampaignTemplates: 1,
		},
		Features: dbtypes.FeatureSet{
			enums.FeatureQMSAdvanced:            false,
			enums.FeatureQMSWhatsAppIntegration: false,
			enums.FeatureQMSAnalytics:           false,
			enums.FeatureQMSAutomation:          false,
		},
	},
	enums.TierStarter: {
		Name: "Starter",
		Limits: dbtypes.LimitSet{
			enums.QuotaGuestRecords:      2000,
			enums.QuotaLocations:         2,
			enums.QuotaReceiptProcessing: 500,
			enums.QuotaCampaignTemplates: 5,
		},
		Features: dbtypes.FeatureSet{
			enums.FeatureQMSAdvanced:            true,
			enums.FeatureQMSWhatsAppIntegration: true,
			enums.FeatureQMSAnalytics:           false,
			enums.FeatureQMSAutomation:          false,
		},
	},
	enums.TierProfessional: {
		Name: "Professional",
		Limits: dbtypes.LimitSet{
			enums.QuotaGuestRecords:      10000,
			enums.QuotaLocations:         5,
			enums.QuotaReceiptProcessing: 2000,
			enums.QuotaCampaignTemplates: 20,
		},
		Features: dbtypes.FeatureSet{
			enums.FeatureQMSAdvanced:            true,
			enums.FeatureQMSWhatsAppIntegration: true,
			enums.FeatureQMSAnalytics:           true,
			enums.FeatureQMSAutomation:          false,
		},
	},
	enums.TierEnterprise: {
		Name: "Enterprise",
		Limits: dbtypes.LimitSet{
			enums.QuotaGuestRecords:      Unlimited,
			enums.QuotaLocations:         Unlimited,
			enums.QuotaReceiptProcessing: Unlimited,
			enums.QuotaCampaignTemplates: Unlimited,
		},
		Features: dbtypes.FeatureSet{
			enums.FeatureQMSAdvanced:            true,
			enums.FeatureQMSWhatsAppIntegration: true,
			enums.FeatureQMSAnalytics:           true,
			enums.FeatureQMSAutomation:          true,
		},
	},
}

// Get returns the registry entry for the given tier. The returned maps are
// copies; mutating them does not touch the registry.
func Get(tier enums.Tier) (Definition, error) {
	def, ok := registry[tier]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	return Definition{
		Name:     def.Name,
		Limits:   copyLimits(def.Limits),
		Features: copyFeatures(def.Features),
	}, nil
}

// MustGet is Get for tiers known at compile time; it panics on registry
// misuse so tests fail loudly.
func MustGet(tier enums.Tier) Definition {
	def, err := Get(tier)
	if err != nil {
		panic(err)
	}
	return def
}

func copyLimits(in dbtypes.LimitSet) dbtypes.LimitSet {
	out := make(dbtypes.LimitSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFeatures(in dbtypes.FeatureSet) dbtypes.FeatureSet {
	out := make(dbtypes.FeatureSet, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
