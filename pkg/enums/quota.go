package enums

import "fmt"

// Quota identifies a metered tenant resource.
type Quota string

const (
	QuotaGuestRecords      Quota = "guestRecords"
	QuotaLocations         Quota = "locations"
	QuotaReceiptProcessing Quota = "receiptProcessing"
	QuotaCampaignTemplates Quota = "campaignTemplates"
)

var validQuotas = []Quota{
	QuotaGuestRecords,
	QuotaLocations,
	QuotaReceiptProcessing,
	QuotaCampaignTemplates,
}

// String implements fmt.Stringer.
func (q Quota) String() string {
	return string(q)
}

// IsValid reports whether the value is known.
func (q Quota) IsValid() bool {
	for _, candidate := range validQuotas {
		if candidate == q {
			return true
		}
	}
	return false
}

// Label returns the human wording used in quota denial messages.
func (q Quota) Label() string {
	switch q {
	case QuotaGuestRecords:
		return "Guest record"
	case QuotaLocations:
		return "Location"
	case QuotaReceiptProcessing:
		return "Receipt processing"
	case QuotaCampaignTemplates:
		return "Campaign template"
	default:
		return string(q)
	}
}

// ParseQuota converts raw input into a Quota.
func ParseQuota(value string) (Quota, error) {
	for _, candidate := range validQuotas {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quota %q", value)
}
