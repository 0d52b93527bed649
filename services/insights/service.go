package insights

import (
	"math"
	"time"

	"makersclub-insights/pkg/config"
	"makersclub-insights/services/eventstore"

	"go.uber.org/fx"
)

// Service computes KPIs, trend series and lifecycle segments. Every method
// is a pure function of a store snapshot plus an explicit now, so reports
// are deterministic and testable without wall-clock coupling.
type Service struct {
	price int64
}

type ServiceParams struct {
	fx.In
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{price: p.Config.Pricing.DefaultPrice}
}

// firstRenewalWindow reports whether start falls in the half-open band
// (now-35d, now-25d], i.e. the subscriber approaches the ~day-30 renewal
// boundary within a ±5 day tolerance.
func firstRenewalWindow(start, now time.Time) bool {
	lower := now.AddDate(0, 0, -35)
	upper := now.AddDate(0, 0, -25)
	return start.After(lower) && !start.After(upper)
}

// Metrics aggregates the snapshot into the KPI record for the given day.
// An empty snapshot yields all zeros; cold start is a valid state.
func (s *Service) Metrics(snap *eventstore.Snapshot, now time.Time) Metrics {
	today := eventstore.Day(now)
	weekAgo := today.AddDate(0, 0, -7)

	var m Metrics
	for _, sub := range snap.Subscriptions {
		m.TotalEver++
		switch sub.Status {
		case eventstore.StatusActive:
			m.Active++
			if firstRenewalWindow(eventstore.Day(sub.StartDate), today) {
				m.FirstRenewalUpcoming++
			}
		case eventstore.StatusChurned:
			m.Churned++
		}
	}

	var renewedEvents int
	for _, ev := range snap.Events {
		switch ev.EventType {
		case eventstore.EventNew:
			if !eventstore.Day(ev.Date).Before(weekAgo) {
				m.NewThisWeek++
			}
		case eventstore.EventRenewed:
			renewedEvents++
		}
	}

	m.MRR = int64(m.Active) * s.price
	m.RetentionM1 = retentionM1(renewedEvents, m.Churned)

	return m
}

// retentionM1 approximates first-month retention as the share of renewal
// events among renewal plus churn events, floored to avoid division by
// zero, rounded to one decimal place.
func retentionM1(renewed, churned int) float64 {
	divisor := churned + renewed
	if divisor < 1 {
		divisor = 1
	}
	ratio := float64(renewed) / float64(divisor) * 100
	return math.Round(ratio*10) / 10
}

// ChartData builds the weekly trend series and classifies every current
// subscriber into one lifecycle segment.
func (s *Service) ChartData(snap *eventstore.Snapshot, now time.Time) ChartData {
	out := s.weeklySeries(snap)
	out.Segments = s.segments(snap, now)
	return out
}

// segments walks subscriptions once so the buckets partition the
// population: active subscribers split by start_date into new (last 7
// days), first_renewal (approaching the day-30 boundary) and active
// (everyone else); churned counts terminated subscriptions.
func (s *Service) segments(snap *eventstore.Snapshot, now time.Time) Segments {
	today := eventstore.Day(now)
	weekAgo := today.AddDate(0, 0, -7)

	var seg Segments
	for _, sub := range snap.Subscriptions {
		if sub.Status == eventstore.StatusChurned {
			seg.Churned++
			continue
		}

		start := eventstore.Day(sub.StartDate)
		switch {
		case !start.Before(weekAgo):
			seg.New++
		case firstRenewalWindow(start, today):
			seg.FirstRenewal++
		default:
			seg.Active++
		}
	}

	return seg
}
