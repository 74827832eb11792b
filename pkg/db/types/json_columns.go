package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/hostlane/qms-backend/pkg/enums"
)

// FeatureSet is the denormalized feature snapshot stored on a subscription
// row as JSONB.
type FeatureSet map[enums.Feature]bool

func (f FeatureSet) Value() (driver.Value, error) {
	if f == nil {
		f = FeatureSet{}
	}
	return json.Marshal(f)
}

func (f *FeatureSet) Scan(src any) error {
	return scanJSON(src, f, "FeatureSet")
}

// Enabled reports whether the feature is present and switched on.
func (f FeatureSet) Enabled(feature enums.Feature) bool {
	return f[feature]
}

// LimitSet is the denormalized quota snapshot stored on a subscription row
// as JSONB. A value of Unlimited means the quota is not metered.
type LimitSet map[enums.Quota]int64

// Unlimited marks a quota that is never exhausted.
const Unlimited int64 = -1

func (l LimitSet) Value() (driver.Value, error) {
	if l == nil {
		l = LimitSet{}
	}
	return json.Marshal(l)
}

func (l *LimitSet) Scan(src any) error {
	return scanJSON(src, l, "LimitSet")
}

// HistoryEntry records a single status transition.
type HistoryEntry struct {
	Action         enums.TransitionAction   `json:"action"`
	PreviousStatus enums.SubscriptionStatus `json:"previousStatus"`
	Timestamp      int64                    `json:"timestamp"`
	Reason         string                   `json:"reason"`
}

// History is the append-only transition log keyed by the transition's epoch
// millisecond timestamp. The engine only ever adds entries.
type History map[string]HistoryEntry

func (h History) Value() (driver.Value, error) {
	if h == nil {
		h = History{}
	}
	return json.Marshal(h)
}

func (h *History) Scan(src any) error {
	return scanJSON(src, h, "History")
}

func scanJSON(src, dest any, label string) error {
	if src == nil {
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("%s: unsupported Scan type %T", label, src)
	}
}
