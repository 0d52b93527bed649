package eventstore

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"makersclub-insights/pkg/errutil"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoadCSV replaces the store contents with the rows of a CSV export. The
// expected header carries user_id, event_type and date columns, plus an
// optional amount. Clearing and reloading happen inside one transaction
// under the write lock, so readers see either the old or the new dataset.
func (s *Service) LoadCSV(ctx context.Context, r io.Reader) (int, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	recs, err := parseCSV(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var accepted int
	err = s.db.Transaction(func(tx *gorm.DB) error {
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
			accepted++
		}
		return nil
	})
	if err != nil {
		zap.L().Error("csv reload failed", zap.Error(err))
		return 0, err
	}

	zap.L().Info("csv reload complete", zap.Int("rows", len(recs)), zap.Int("accepted", accepted))
	return accepted, nil
}

func parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errutil.BadRequest("empty or unreadable csv", errutil.WithErr(err))
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"user_id", "event_type", "date"} {
		if _, ok := cols[required]; !ok {
			return nil, errutil.BadRequest("csv missing column " + required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var recs []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged row; skip like any other malformed input.
			continue
		}

		rec := Record{
			UserID:    field(row, "user_id"),
			EventType: field(row, "event_type"),
			Date:      field(row, "date"),
		}
		if raw := field(row, "amount"); raw != "" {
			if amount, err := strconv.ParseInt(raw, 10, 64); err == nil {
				rec.Amount = &amount
			}
		}
		recs = append(recs, rec)
	}

	return recs, nil
}
