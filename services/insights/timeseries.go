package insights

import (
	"sort"

	"makersclub-insights/services/eventstore"
)

type weekKey struct {
	year int
	week int
}

type weekTally struct {
	newCount     int
	churnedCount int
	label        string
}

// weeklySeries buckets events by ISO (year, week), tallies signups and
// churns per bucket, then walks the weeks in ascending order keeping a
// running active count.
func (s *Service) weeklySeries(snap *eventstore.Snapshot) ChartData {
	buckets := make(map[weekKey]*weekTally)

	for _, ev := range snap.Events {
		year, week := ev.Date.ISOWeek()
		key := weekKey{year: year, week: week}

		tally, ok := buckets[key]
		if !ok {
			// Events arrive date-ordered, so the first one seen names
			// the bucket.
			tally = &weekTally{label: ev.Date.Format(eventstore.DateLayout)}
			buckets[key] = tally
		}

		switch ev.EventType {
		case eventstore.EventNew:
			tally.newCount++
		case eventstore.EventChurned:
			tally.churnedCount++
		}
	}

	keys := make([]weekKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].week < keys[j].week
	})

	out := ChartData{
		Labels:       make([]string, 0, len(keys)),
		MRR:          make([]int64, 0, len(keys)),
		NewByWeek:    make([]int, 0, len(keys)),
		ActiveByWeek: make([]int, 0, len(keys)),
	}

	runningActive := 0
	for _, key := range keys {
		tally := buckets[key]
		runningActive += tally.newCount - tally.churnedCount

		out.Labels = append(out.Labels, tally.label)
		out.MRR = append(out.MRR, int64(runningActive)*s.price)
		out.NewByWeek = append(out.NewByWeek, tally.newCount)
		out.ActiveByWeek = append(out.ActiveByWeek, runningActive)
	}

	return out
}
