/*
tally_test.go - Aggregate computation from a live roster

PURPOSE:
  Pins down the counting rules: derived fields, the canonical mixed-roster
  example, unknown-status folding, and the empty roster.
*/
package muster_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/muster-engine/muster"
)

func person(id string, status muster.Status) muster.PersonStatus {
	return muster.PersonStatus{ID: id, Name: "Person " + id, Status: status}
}

func mixedRoster() []muster.PersonStatus {
	// Ten people: three absent, one unavailable, six present.
	return []muster.PersonStatus{
		person("p-01", muster.StatusPresent),
		person("p-02", muster.StatusAbsent),
		person("p-03", muster.StatusPresent),
		person("p-04", muster.StatusAbsent),
		person("p-05", muster.StatusPresent),
		person("p-06", muster.StatusAbsent),
		person("p-07", muster.StatusUnavailable),
		person("p-08", muster.StatusPresent),
		person("p-09", muster.StatusPresent),
		person("p-10", muster.StatusPresent),
	}
}

func TestTally_DerivedCounts(t *testing.T) {
	// GIVEN: ten people, three absent, one unavailable
	agg, unknown := muster.Tally("2025-05-20", mixedRoster())

	// THEN: present = total - absent, on_the_line = present - unavailable
	assert.Empty(t, unknown)
	assert.Equal(t, muster.DayLabel("2025-05-20"), agg.DateLabel)
	assert.Equal(t, 10, agg.Total)
	assert.Equal(t, 3, agg.Absent)
	assert.Equal(t, 7, agg.Present)
	assert.Equal(t, 1, agg.Unavailable)
	assert.Equal(t, 6, agg.OnTheLine)
	assert.True(t, agg.PresenceRate.Equal(decimal.RequireFromString("70")),
		"presence rate should be 70, got %s", agg.PresenceRate)
}

func TestTally_FullRecompute_IsIdempotent(t *testing.T) {
	roster := mixedRoster()

	first, _ := muster.Tally("2025-05-20", roster)
	second, _ := muster.Tally("2025-05-20", roster)

	// Rerunning over the same roster converges to the same counts.
	assert.True(t, first.Equal(second))
}

func TestTally_UnknownStatus_CountsAsPresent(t *testing.T) {
	// GIVEN: one person with a status outside the known set
	roster := []muster.PersonStatus{
		person("p-01", muster.StatusPresent),
		person("p-02", muster.StatusAbsent),
		person("p-03", muster.Status("on-loan")),
	}

	agg, unknown := muster.Tally("2025-05-20", roster)

	// THEN: folded into present, surfaced for the caller to log
	assert.Equal(t, 3, agg.Total)
	assert.Equal(t, 1, agg.Absent)
	assert.Equal(t, 2, agg.Present)
	assert.Equal(t, 0, agg.Unavailable)
	assert.Equal(t, 2, agg.OnTheLine)

	require.Len(t, unknown, 1)
	assert.Equal(t, "p-03", unknown[0].ID)
}

func TestTally_EmptyRoster(t *testing.T) {
	agg, unknown := muster.Tally("2025-05-20", nil)

	assert.Empty(t, unknown)
	assert.Equal(t, 0, agg.Total)
	assert.Equal(t, 0, agg.Present)
	assert.Equal(t, 0, agg.OnTheLine)
	assert.True(t, agg.PresenceRate.IsZero(), "empty roster must not divide by zero")
}

func TestTally_PresenceRate_Rounding(t *testing.T) {
	roster := []muster.PersonStatus{
		person("p-01", muster.StatusPresent),
		person("p-02", muster.StatusPresent),
		person("p-03", muster.StatusAbsent),
	}

	agg, _ := muster.Tally("2025-05-20", roster)

	// 2/3 = 66.67 after rounding to two places.
	assert.True(t, agg.PresenceRate.Equal(decimal.RequireFromString("66.67")),
		"got %s", agg.PresenceRate)
}

func TestSnapshotRoster_FreezesStatusAndReason(t *testing.T) {
	away := person("p-02", muster.StatusAbsent)
	away.Reason = "sick leave"
	roster := []muster.PersonStatus{person("p-01", muster.StatusPresent), away}

	rows := muster.SnapshotRoster("2025-05-20", roster)

	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, muster.DayLabel("2025-05-20"), row.DateLabel)
	}
	assert.Equal(t, muster.StatusAbsent, rows[1].Status)
	assert.Equal(t, "sick leave", rows[1].Reason)
}
