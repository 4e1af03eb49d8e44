package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/model"
)

func drafts(n int) []StepDraft {
	out := make([]StepDraft, n)
	for i := range out {
		out[i] = StepDraft{Title: "step"}
	}
	return out
}

func day(s string) time.Time {
	d, err := model.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExtractStepsKeepsOrder(t *testing.T) {
	plan := model.Plan{Steps: []model.PlanStep{
		{Title: "a", Description: "first", Order: 1},
		{Title: "b", Description: "second", Order: 2},
	}}

	got := ExtractSteps(plan)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "second", got[1].Description)
	assert.Nil(t, got[0].DueDate)
}

func TestCalculateDueDatesSpreadsEvenly(t *testing.T) {
	start := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	deadline := day("2024-01-11")

	got := CalculateDueDates(drafts(5), &deadline, start)

	want := []string{"2024-01-03", "2024-01-05", "2024-01-07", "2024-01-09", "2024-01-11"}
	require.Len(t, got, len(want))
	for i, w := range want {
		require.NotNil(t, got[i].DueDate)
		assert.Equal(t, w, got[i].DueDate.Format(time.DateOnly), "step %d", i)
	}
}

func TestCalculateDueDatesCollapsesWhenStepsOutnumberDays(t *testing.T) {
	start := day("2024-01-01")
	deadline := day("2024-01-03")

	got := CalculateDueDates(drafts(5), &deadline, start)

	for _, d := range got {
		assert.Equal(t, start, *d.DueDate)
	}
}

func TestCalculateDueDatesPastDeadlineClampsToStart(t *testing.T) {
	start := day("2024-01-10")
	deadline := day("2024-01-01")

	got := CalculateDueDates(drafts(2), &deadline, start)

	assert.Equal(t, start, *got[0].DueDate)
	assert.Equal(t, start, *got[1].DueDate)
}

func TestCalculateDueDatesWithoutDeadline(t *testing.T) {
	got := CalculateDueDates(drafts(3), nil, testNow)

	for _, d := range got {
		assert.Nil(t, d.DueDate)
	}
	assert.Empty(t, CalculateDueDates(nil, nil, testNow))
}
