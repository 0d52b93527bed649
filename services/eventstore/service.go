package eventstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"makersclub-insights/pkg/config"
	"makersclub-insights/pkg/db/option"
	"makersclub-insights/pkg/errutil"
	"makersclub-insights/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns the events and subscriptions tables. All mutation goes
// through Ingest/Reset/LoadCSV/Seed under the write lock; Snapshot takes the
// read lock so a bulk reload is never observed half-done.
type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	price int64

	mu sync.RWMutex

	events repository.Repository[Event]
	subs   repository.Repository[Subscription]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		price: p.Config.Pricing.DefaultPrice,

		events: repository.ProvideStore[Event](p.DB),
		subs:   repository.ProvideStore[Subscription](p.DB),
	}
}

// DefaultPrice is the flat monthly tier applied when a record has no amount.
func (s *Service) DefaultPrice() int64 {
	return s.price
}

func (s *Service) validate(rec Record) (EventType, time.Time, error) {
	if strings.TrimSpace(rec.UserID) == "" {
		return "", time.Time{}, errutil.ValidationFailed("user_id is required")
	}

	eventType, err := ParseEventType(strings.TrimSpace(rec.EventType))
	if err != nil {
		return "", time.Time{}, errutil.ValidationFailed("unrecognized event_type", errutil.WithErr(err))
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return "", time.Time{}, errutil.ValidationFailed("unparsable date", errutil.WithErr(err))
	}

	return eventType, Day(date), nil
}

// Ingest validates and applies a single lifecycle record. Validation
// failures carry errutil.StatusValidationFailed so batch callers can skip
// the row and continue.
func (s *Service) Ingest(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.ingestTx(ctx, tx, rec)
	})
}

// IngestBatch applies records one at a time, skipping invalid rows. It
// returns how many rows were accepted; only storage errors abort the batch.
func (s *Service) IngestBatch(ctx context.Context, recs []Record) (int, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			if err := s.ingestTx(ctx, tx, rec); err != nil {
				if errutil.IsValidation(err) {
					zap.L().Debug("skipping invalid record", zap.String("user_id", rec.UserID), zap.Error(err))
					continue
				}
				return err
			}
			accepted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return accepted, nil
}

func (s *Service) ingestTx(ctx context.Context, tx *gorm.DB, rec Record) error {
	eventType, date, err := s.validate(rec)
	if err != nil {
		return err
	}

	userID := strings.TrimSpace(rec.UserID)
	subs := s.subs.WithTrx(tx)

	switch eventType {
	case EventNew:
		amount := s.price
		if rec.Amount != nil {
			amount = *rec.Amount
		}

		existing, err := subs.FindOne(ctx, &Subscription{UserID: userID})
		if err != nil {
			return err
		}

		now := time.Now()
		if existing != nil {
			// Re-signup overwrites the latest-state row.
			if err := subs.Update(ctx, existing.ID, map[string]any{
				"start_date": date,
				"end_date":   nil,
				"amount":     amount,
				"status":     StatusActive,
				"updated_at": now,
			}); err != nil {
				return err
			}
		} else {
			if err := subs.Create(ctx, &Subscription{
				ID:        s.node.Generate().String(),
				UserID:    userID,
				StartDate: date,
				Amount:    amount,
				Status:    StatusActive,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}

	case EventChurned:
		existing, err := subs.FindOne(ctx, &Subscription{UserID: userID})
		if err != nil {
			return err
		}
		if existing != nil {
			end := date
			if err := subs.Update(ctx, existing.ID, map[string]any{
				"end_date":   &end,
				"status":     StatusChurned,
				"updated_at": time.Now(),
			}); err != nil {
				return err
			}
		}

	case EventRenewed:
		// Log-only marker, used for retention counting.
	}

	return s.events.WithTrx(tx).Create(ctx, &Event{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		EventType: eventType,
		Date:      date,
		CreatedAt: time.Now(),
	})
}

// Reset clears both tables. It holds the write lock for the duration so no
// reader observes a partially cleared store.
func (s *Service) Reset(ctx context.Context) error {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.resetTx(ctx, tx)
	})
}

func (s *Service) resetTx(ctx context.Context, tx *gorm.DB) error {
	if err := tx.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Event{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Subscription{}).Error
}

// Snapshot returns a consistent read view of both tables. Events come back
// ordered by date then insertion order.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	subs, err := s.subs.Find(ctx, &Subscription{},
		option.WithSortBy(option.QuerySortBy{SortBy: "start_date"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id"}),
	)
	if err != nil {
		zap.L().Error("failed to load subscriptions", zap.Error(err))
		return nil, err
	}

	events, err := s.events.Find(ctx, &Event{},
		option.WithSortBy(option.QuerySortBy{SortBy: "date"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id"}),
	)
	if err != nil {
		zap.L().Error("failed to load events", zap.Error(err))
		return nil, err
	}

	return &Snapshot{
		Subscriptions: subs,
		Events:        events,
		TakenAt:       time.Now(),
	}, nil
}

// Migrate creates the two tables. Invoked once at startup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Event{}, &Subscription{})
}
