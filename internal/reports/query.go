package reports

import (
	"fmt"
	"time"
)

// Defaults for the measurement windows. They match the clinical protocol the
// service was introduced with; deployments can override them in config.
const (
	DefaultLookbackDays = 30
	DefaultMinLagDays   = 30
	DefaultMaxLagDays   = 90
	DefaultBucketDays   = 7
	DefaultBaselineIOP  = 22.0
)

// ValidationError marks a rejected query, as opposed to a store failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// EffectivenessQuery describes one aggregation request. It is transient:
// nothing about it is persisted.
type EffectivenessQuery struct {
	Medications []string
	StartDate   time.Time
	EndDate     time.Time

	// measurement windows, in days relative to the prescription date
	LookbackDays int
	MinLagDays   int
	MaxLagDays   int

	// cohort filters
	AgeMin     *int
	AgeMax     *int
	ActiveOnly bool

	// trend series
	BucketDays  int
	BaselineIOP float64
}

// Validate applies defaults and rejects impossible windows before any
// query runs.
func (q *EffectivenessQuery) Validate() error {
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return invalidf("start_date and end_date are required")
	}
	if q.EndDate.Before(q.StartDate) {
		return invalidf("end_date must not be before start_date")
	}
	if q.LookbackDays <= 0 {
		q.LookbackDays = DefaultLookbackDays
	}
	if q.MinLagDays <= 0 {
		q.MinLagDays = DefaultMinLagDays
	}
	if q.MaxLagDays <= 0 {
		q.MaxLagDays = DefaultMaxLagDays
	}
	if q.MaxLagDays < q.MinLagDays {
		return invalidf("max_lag_days (%d) must not be less than min_lag_days (%d)", q.MaxLagDays, q.MinLagDays)
	}
	if q.BucketDays <= 0 {
		q.BucketDays = DefaultBucketDays
	}
	if q.BaselineIOP <= 0 {
		q.BaselineIOP = DefaultBaselineIOP
	}
	if q.AgeMin != nil && q.AgeMax != nil && *q.AgeMax < *q.AgeMin {
		return invalidf("age_max must not be less than age_min")
	}
	return nil
}

// measurementWindow is the full assessment range the aggregation can touch.
func (q *EffectivenessQuery) measurementWindow() (time.Time, time.Time) {
	from := q.StartDate.AddDate(0, 0, -q.LookbackDays)
	to := q.EndDate.AddDate(0, 0, q.MaxLagDays)
	return from, to
}
