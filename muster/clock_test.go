/*
clock_test.go - Business-day clock behavior

PURPOSE:
  These tests pin down the boundary behavior of the business-day clock.
  Every filter and job in the system routes through LabelFor/WindowStart/
  WindowEnd, so the millisecond either side of cutover has to land on the
  right label, always.

ORGANIZATION:
  1. Labeling - which day an instant belongs to
  2. Windows - start/end instants of a labeled day
  3. Contiguity - every instant belongs to exactly one label
  4. Scheduling - next cutover alignment
  5. Configuration - zone and hour validation
*/
package muster_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/muster-engine/muster"
)

func jakartaClock(t *testing.T) muster.Clock {
	t.Helper()
	clock, err := muster.NewClock("Asia/Jakarta", 6)
	require.NoError(t, err)
	return clock
}

// =============================================================================
// LABELING
// =============================================================================

func TestClock_LabelFor_BeforeCutover_IsSameDate(t *testing.T) {
	clock := jakartaClock(t)

	// GIVEN: 05:59:59.999 local, one millisecond before cutover
	instant := time.Date(2025, 5, 20, 5, 59, 59, 999_000_000, clock.Location)

	// THEN: still the day that ends this morning
	assert.Equal(t, muster.DayLabel("2025-05-20"), clock.LabelFor(instant))
}

func TestClock_LabelFor_AtCutover_IsNextDate(t *testing.T) {
	clock := jakartaClock(t)

	// GIVEN: 06:00:00.000 local, cutover sharp
	instant := time.Date(2025, 5, 20, 6, 0, 0, 0, clock.Location)

	// THEN: the new day has opened
	assert.Equal(t, muster.DayLabel("2025-05-21"), clock.LabelFor(instant))
}

func TestClock_LabelFor_EveningBelongsToNextDate(t *testing.T) {
	clock := jakartaClock(t)

	instant := time.Date(2025, 5, 19, 22, 30, 0, 0, clock.Location)

	assert.Equal(t, muster.DayLabel("2025-05-20"), clock.LabelFor(instant))
}

func TestClock_LabelFor_UsesFacilityZone_NotInstantZone(t *testing.T) {
	clock := jakartaClock(t)

	// GIVEN: a UTC instant that is already past cutover in Jakarta (UTC+7)
	instant := time.Date(2025, 5, 19, 23, 30, 0, 0, time.UTC) // 06:30 on the 20th in Jakarta

	assert.Equal(t, muster.DayLabel("2025-05-21"), clock.LabelFor(instant))
}

func TestClock_LabelFor_MonthAndYearBoundaries(t *testing.T) {
	clock := jakartaClock(t)

	newYearsEve := time.Date(2025, 12, 31, 23, 0, 0, 0, clock.Location)
	assert.Equal(t, muster.DayLabel("2026-01-01"), clock.LabelFor(newYearsEve))

	leapMorning := time.Date(2024, 2, 29, 3, 0, 0, 0, clock.Location)
	assert.Equal(t, muster.DayLabel("2024-02-29"), clock.LabelFor(leapMorning))
}

// =============================================================================
// WINDOWS
// =============================================================================

func TestClock_Window_NamedByEndDate(t *testing.T) {
	clock := jakartaClock(t)

	start, err := clock.WindowStart("2025-05-20")
	require.NoError(t, err)
	end, err := clock.WindowEnd("2025-05-20")
	require.NoError(t, err)

	// The label names the date the window ENDS on.
	assert.Equal(t, time.Date(2025, 5, 19, 6, 0, 0, 0, clock.Location), start)
	assert.Equal(t, time.Date(2025, 5, 20, 5, 59, 59, 999_000_000, clock.Location), end)
}

func TestClock_Window_ContainsItsInstants(t *testing.T) {
	clock := jakartaClock(t)

	// WindowStart(LabelFor(t)) <= t <= WindowEnd(LabelFor(t))
	instants := []time.Time{
		time.Date(2025, 5, 19, 6, 0, 0, 0, clock.Location),
		time.Date(2025, 5, 19, 14, 12, 8, 0, clock.Location),
		time.Date(2025, 5, 20, 0, 0, 0, 0, clock.Location),
		time.Date(2025, 5, 20, 5, 59, 59, 999_000_000, clock.Location),
	}

	for _, instant := range instants {
		label := clock.LabelFor(instant)
		start, err := clock.WindowStart(label)
		require.NoError(t, err)
		end, err := clock.WindowEnd(label)
		require.NoError(t, err)

		assert.False(t, instant.Before(start), "instant %v before window start %v", instant, start)
		assert.False(t, instant.After(end), "instant %v after window end %v", instant, end)
	}
}

func TestClock_Window_InvalidLabelRejected(t *testing.T) {
	clock := jakartaClock(t)

	_, err := clock.WindowStart("20-05-2025")
	assert.ErrorIs(t, err, muster.ErrInvalidDayLabel)

	_, err = clock.WindowEnd("not-a-date")
	assert.ErrorIs(t, err, muster.ErrInvalidDayLabel)
}

// =============================================================================
// CONTIGUITY
// =============================================================================

func TestClock_Windows_AreContiguous(t *testing.T) {
	clock := jakartaClock(t)

	end, err := clock.WindowEnd("2025-05-20")
	require.NoError(t, err)
	nextStart, err := clock.WindowStart(muster.DayLabel("2025-05-20").Next())
	require.NoError(t, err)

	// One millisecond separates a window's end from the next window's start.
	assert.Equal(t, nextStart, end.Add(time.Millisecond))

	// And the boundary instants label accordingly.
	assert.Equal(t, muster.DayLabel("2025-05-20"), clock.LabelFor(end))
	assert.Equal(t, muster.DayLabel("2025-05-21"), clock.LabelFor(nextStart))
}

// =============================================================================
// SCHEDULING
// =============================================================================

func TestClock_NextCutover_AlwaysStrictlyAhead(t *testing.T) {
	clock := jakartaClock(t)

	// Before today's cutover: fires today.
	early := time.Date(2025, 5, 20, 3, 0, 0, 0, clock.Location)
	assert.Equal(t,
		time.Date(2025, 5, 20, 6, 0, 0, 0, clock.Location),
		clock.NextCutover(early))

	// At cutover sharp: fires tomorrow, never twice for the same instant.
	sharp := time.Date(2025, 5, 20, 6, 0, 0, 0, clock.Location)
	assert.Equal(t,
		time.Date(2025, 5, 21, 6, 0, 0, 0, clock.Location),
		clock.NextCutover(sharp))

	// Evening: fires tomorrow.
	late := time.Date(2025, 5, 20, 23, 45, 0, 0, clock.Location)
	assert.Equal(t,
		time.Date(2025, 5, 21, 6, 0, 0, 0, clock.Location),
		clock.NextCutover(late))
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func TestNewClock_Validation(t *testing.T) {
	_, err := muster.NewClock("Asia/Jakarta", 24)
	assert.ErrorIs(t, err, muster.ErrInvalidCutoverHour)

	_, err = muster.NewClock("Asia/Jakarta", -1)
	assert.ErrorIs(t, err, muster.ErrInvalidCutoverHour)

	_, err = muster.NewClock("Not/AZone", 6)
	assert.Error(t, err)

	clock, err := muster.NewClock("Asia/Jakarta", 0)
	require.NoError(t, err)
	// Midnight cutover degenerates to calendar days.
	assert.Equal(t, muster.DayLabel("2025-05-21"),
		clock.LabelFor(time.Date(2025, 5, 20, 12, 0, 0, 0, clock.Location)))
}

func TestParseDayLabel(t *testing.T) {
	label, err := muster.ParseDayLabel("2025-05-20")
	require.NoError(t, err)
	assert.Equal(t, muster.DayLabel("2025-05-20"), label)

	_, err = muster.ParseDayLabel("2025-13-40")
	assert.ErrorIs(t, err, muster.ErrInvalidDayLabel)
}

func TestDayLabel_NextPrevious(t *testing.T) {
	assert.Equal(t, muster.DayLabel("2025-06-01"), muster.DayLabel("2025-05-31").Next())
	assert.Equal(t, muster.DayLabel("2025-05-31"), muster.DayLabel("2025-06-01").Previous())
	assert.Equal(t, muster.DayLabel("2024-02-29"), muster.DayLabel("2024-03-01").Previous())
}
