package server

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/johnstarich/uiwatch/notify"
	"github.com/johnstarich/uiwatch/pipeline"
	"github.com/patrickmn/go-cache"
	"go.uber.org/atomic"
)

// DefaultRetention is how long failures stay browsable
const DefaultRetention = 24 * time.Hour

// Failure is a published failure report
type Failure struct {
	ID             string          `json:"id"`
	Received       time.Time       `json:"received"`
	Report         pipeline.Report `json:"report"`
	Delivery       notify.Status   `json:"delivery"`
	DeliveryReason string          `json:"delivery_reason,omitempty"`
}

// Stats counts every report published since start, including expired ones
type Stats struct {
	Passed int64 `json:"passed"`
	Failed int64 `json:"failed"`
}

// Index keeps recent failure reports in memory. Safe for concurrent use by multiple workers.
type Index struct {
	failures       *cache.Cache
	passed, failed *atomic.Int64
	now            func() time.Time
}

// NewIndex creates an Index that forgets failures after 'retention'
func NewIndex(retention time.Duration) *Index {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Index{
		failures: cache.New(retention, retention/4+1),
		passed:   atomic.NewInt64(0),
		failed:   atomic.NewInt64(0),
		now:      time.Now,
	}
}

// Publish implements pipeline.Publisher. Only failures are kept.
func (i *Index) Publish(report pipeline.Report) {
	if report.Outcome != pipeline.Failed {
		i.passed.Inc()
		return
	}
	i.failed.Inc()
	failure := Failure{
		ID:       uuid.New().String(),
		Received: i.now(),
		Report:   report,
		Delivery: report.Delivery.Status,
	}
	if report.Delivery.Reason != nil {
		failure.DeliveryReason = report.Delivery.Reason.Error()
	}
	i.failures.SetDefault(failure.ID, failure)
}

// Get returns the failure with 'id', if it has not expired
func (i *Index) Get(id string) (Failure, bool) {
	value, found := i.failures.Get(id)
	if !found {
		return Failure{}, false
	}
	failure, ok := value.(Failure)
	return failure, ok
}

// List returns unexpired failures, newest first
func (i *Index) List() []Failure {
	items := i.failures.Items()
	failures := make([]Failure, 0, len(items))
	for _, item := range items {
		if failure, ok := item.Object.(Failure); ok {
			failures = append(failures, failure)
		}
	}
	sort.Slice(failures, func(a, b int) bool {
		if failures[a].Received.Equal(failures[b].Received) {
			return failures[a].ID < failures[b].ID
		}
		return failures[a].Received.After(failures[b].Received)
	})
	return failures
}

// Stats returns publish counts
func (i *Index) Stats() Stats {
	return Stats{
		Passed: i.passed.Load(),
		Failed: i.failed.Load(),
	}
}
