package muster

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TALLY - Aggregate computation from a live roster
// =============================================================================

// Tally rolls a roster up into the aggregate for one business day.
//
// This is a full recompute, never an increment: running it twice over the
// same roster produces identical aggregates, which is what makes the
// periodic upsert idempotent by construction.
//
// Derived fields follow the counting rule:
//   present     = total - absent
//   on_the_line = present - unavailable
//
// A status outside the known set must not sink the job that called us, so
// it is counted conservatively as present and returned in unknown for the
// caller to log. An aggregate miscount is recoverable; a crashed job is not.
func Tally(label DayLabel, roster []PersonStatus) (agg Aggregate, unknown []PersonStatus) {
	agg.DateLabel = label
	agg.Total = len(roster)

	for _, p := range roster {
		switch p.Status {
		case StatusAbsent:
			agg.Absent++
		case StatusUnavailable:
			agg.Unavailable++
		case StatusPresent:
			// Counted via the derived rule below.
		default:
			unknown = append(unknown, p)
		}
	}

	agg.Present = agg.Total - agg.Absent
	agg.OnTheLine = agg.Present - agg.Unavailable
	agg.PresenceRate = presenceRate(agg.Present, agg.Total)
	agg.UpdatedAt = time.Now().UTC()

	return agg, unknown
}

// presenceRate returns present/total as a percentage with two decimal
// places. An empty roster rates zero rather than dividing by it.
func presenceRate(present, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(present)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// SnapshotRoster freezes a roster into per-person snapshot rows for a label.
func SnapshotRoster(label DayLabel, roster []PersonStatus) []PersonSnapshot {
	now := time.Now().UTC()
	rows := make([]PersonSnapshot, len(roster))
	for i, p := range roster {
		rows[i] = PersonSnapshot{
			DateLabel: label,
			PersonID:  p.ID,
			Status:    p.Status,
			Reason:    p.Reason,
			CreatedAt: now,
		}
	}
	return rows
}
