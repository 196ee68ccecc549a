package reporting

import (
	"context"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
)

// ActivityMetrics are the sales-activity figures quoted in a seller report
type ActivityMetrics struct {
	PageViews          int      `json:"pageViews"`
	Inquiries          int      `json:"inquiries"`
	Viewings           int      `json:"viewings"`
	Competitors        int      `json:"competitors"`
	PriceRange         string   `json:"priceRange,omitempty"`
	Feedback           string   `json:"feedback,omitempty"`
	RecommendedActions []string `json:"recommendedActions,omitempty"`
}

// MetricsSource supplies the activity figures of one agreement
type MetricsSource interface {
	ActivityFor(ctx context.Context, a agreement.DueAgreement) (ActivityMetrics, error)
}

// ZeroMetrics reports no activity. Used until an analytics integration exists.
type ZeroMetrics struct{}

// ActivityFor implements MetricsSource
func (ZeroMetrics) ActivityFor(context.Context, agreement.DueAgreement) (ActivityMetrics, error) {
	return ActivityMetrics{}, nil
}
