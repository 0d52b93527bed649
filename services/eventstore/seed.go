package eventstore

import (
	"context"
	"fmt"
	"time"

	"makersclub-insights/pkg/errutil"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// weeklyTargets is the signup count per weekly cohort of the demo dataset,
// oldest week first.
var weeklyTargets = []int{60, 48, 38, 35, 45, 47}

const seedChurnTarget = 2

// SeedSummary reports what the generator wrote.
type SeedSummary struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Churned int `json:"churned"`
}

// Seed replaces the store contents with a deterministic synthetic dataset
// spanning the six weeks leading up to now: weekly signup cohorts spread
// evenly across each week, two churns from the oldest cohort at day 31, and
// a renewal event at day 30 for every other subscriber past the first
// billing cycle.
func (s *Service) Seed(ctx context.Context, now time.Time) (SeedSummary, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	today := Day(now)
	clubStart := startOfWeek(today).AddDate(0, 0, -7*(len(weeklyTargets)-1))

	type seedUser struct {
		userID    string
		startDate time.Time
	}

	var users []seedUser
	var recs []Record

	userID := 0
	for weekIdx, target := range weeklyTargets {
		weekStart := clubStart.AddDate(0, 0, 7*weekIdx)
		for i := 0; i < target; i++ {
			userID++
			uid := fmt.Sprintf("user_%04d", userID)
			dayOffset := (i * 7) / target
			signupDay := weekStart.AddDate(0, 0, dayOffset)
			if signupDay.After(today) {
				continue
			}

			users = append(users, seedUser{userID: uid, startDate: signupDay})
			recs = append(recs, Record{
				UserID:    uid,
				EventType: string(EventNew),
				Date:      signupDay.Format(DateLayout),
			})
		}
	}

	// Churn a fixed handful from the first cohort, one day past the
	// renewal boundary.
	churned := make(map[string]bool, seedChurnTarget)
	for _, u := range users {
		if len(churned) == seedChurnTarget {
			break
		}
		if today.Sub(u.startDate) >= 30*24*time.Hour {
			churned[u.userID] = true
			recs = append(recs, Record{
				UserID:    u.userID,
				EventType: string(EventChurned),
				Date:      u.startDate.AddDate(0, 0, 31).Format(DateLayout),
			})
		}
	}

	// Everyone else past 30 days renewed on the boundary.
	for _, u := range users {
		if churned[u.userID] {
			continue
		}
		if today.Sub(u.startDate) >= 30*24*time.Hour {
			recs = append(recs, Record{
				UserID:    u.userID,
				EventType: string(EventRenewed),
				Date:      u.startDate.AddDate(0, 0, 30).Format(DateLayout),
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.resetTx(ctx, tx); err != nil {
			return err
		}
		for _, rec := range recs {
			if err := s.ingestTx(ctx, tx, rec); err != nil {
				if errutil.IsValidation(err) {
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("seed failed", zap.Error(err))
		return SeedSummary{}, err
	}

	total, err := s.subs.Count(ctx, &Subscription{})
	if err != nil {
		return SeedSummary{}, err
	}
	churnedCount, err := s.subs.Count(ctx, &Subscription{Status: StatusChurned})
	if err != nil {
		return SeedSummary{}, err
	}

	summary := SeedSummary{
		Total:   int(total),
		Active:  int(total - churnedCount),
		Churned: int(churnedCount),
	}
	zap.L().Info("demo data generated",
		zap.Int("total", summary.Total),
		zap.Int("active", summary.Active),
		zap.Int("churned", summary.Churned))

	return summary, nil
}

func startOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday()+6) % 7 // Monday = 0
	return day.AddDate(0, 0, -weekday)
}
