package enums

import "fmt"

// Feature identifies a gated platform capability.
type Feature string

const (
	FeatureQMSAdvanced            Feature = "qmsAdvanced"
	FeatureQMSWhatsAppIntegration Feature = "qmsWhatsAppIntegration"
	FeatureQMSAnalytics           Feature = "qmsAnalytics"
	FeatureQMSAutomation          Feature = "qmsAutomation"
)

var validFeatures = []Feature{
	FeatureQMSAdvanced,
	FeatureQMSWhatsAppIntegration,
	FeatureQMSAnalytics,
	FeatureQMSAutomation,
}

// String implements fmt.Stringer.
func (f Feature) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f Feature) IsValid() bool {
	for _, candidate := range validFeatures {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFeature converts raw input into a Feature.
func ParseFeature(value string) (Feature, error) {
	for _, candidate := range validFeatures {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid feature %q", value)
}
