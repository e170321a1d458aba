package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	t     time.Time
	label string
}

func at(e entry) time.Time { return e.t }

var anchor = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestSelectBefore_BoundariesAreExact(t *testing.T) {
	entries := []entry{
		{anchor.Add(-12 * time.Hour), "window-start"},    // exactly anchor-12h: included
		{anchor.Add(-12*time.Hour - 1), "too-old"},       // one ms before start: excluded
		{anchor.Add(-6 * time.Hour), "inside"},
		{anchor, "anchor"},                               // anchor itself: excluded
		{anchor.Add(time.Minute), "future"},
	}

	selected, bounds, err := Select(entries, at, anchor, 12*time.Hour, Before)
	require.NoError(t, err)

	assert.Equal(t, anchor.Add(-12*time.Hour), bounds.Start)
	assert.Equal(t, anchor, bounds.End)

	labels := make([]string, 0, len(selected))
	for _, e := range selected {
		labels = append(labels, e.label)
	}
	assert.Equal(t, []string{"window-start", "inside"}, labels)
}

func TestSelectAfter_IncludesAnchor(t *testing.T) {
	entries := []entry{
		{anchor.Add(-time.Minute), "past"},
		{anchor, "anchor"},
		{anchor.Add(3 * time.Hour), "inside"},
		{anchor.Add(6 * time.Hour), "window-end"}, // exactly anchor+6h: excluded
	}

	selected, _, err := Select(entries, at, anchor, 6*time.Hour, After)
	require.NoError(t, err)

	labels := make([]string, 0, len(selected))
	for _, e := range selected {
		labels = append(labels, e.label)
	}
	assert.Equal(t, []string{"anchor", "inside"}, labels)
}

func TestSelect_SortsUnsortedInputStably(t *testing.T) {
	tied := anchor.Add(-time.Hour)
	entries := []entry{
		{anchor.Add(-30 * time.Minute), "late"},
		{tied, "first-tie"},
		{tied, "second-tie"},
		{anchor.Add(-2 * time.Hour), "early"},
	}

	selected, _, err := Select(entries, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)

	labels := make([]string, 0, len(selected))
	for _, e := range selected {
		labels = append(labels, e.label)
	}
	assert.Equal(t, []string{"early", "first-tie", "second-tie", "late"}, labels)
}

func TestSelect_Idempotent(t *testing.T) {
	entries := []entry{
		{anchor.Add(-5 * time.Hour), "a"},
		{anchor.Add(-3 * time.Hour), "b"},
		{anchor.Add(-13 * time.Hour), "out"},
	}

	once, _, err := Select(entries, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)
	twice, _, err := Select(once, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestSelect_EmptyResultIsNotAnError(t *testing.T) {
	entries := []entry{{anchor.Add(time.Hour), "future"}}

	selected, _, err := Select(entries, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)
	assert.Empty(t, selected)

	selected, _, err = Select(nil, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestSelect_RejectsNonPositiveDuration(t *testing.T) {
	_, _, err := Select([]entry{}, at, anchor, 0, Before)
	assert.Error(t, err)

	_, _, err = Select([]entry{}, at, anchor, -time.Hour, After)
	assert.Error(t, err)
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	entries := []entry{
		{anchor.Add(-time.Hour), "late"},
		{anchor.Add(-3 * time.Hour), "early"},
	}

	_, _, err := Select(entries, at, anchor, 6*time.Hour, Before)
	require.NoError(t, err)

	assert.Equal(t, "late", entries[0].label)
	assert.Equal(t, "early", entries[1].label)
}
