package schedule

import (
	"testing"

	"github.com/jparedesa-eng/fleet-admin/internal/calendar"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	feb := calendar.Month{Year: 2024, Month: 2}
	today := date("2024-02-10")

	occurrences := []models.Occurrence{
		{ID: "o1", VehicleID: "v1", Plate: "ABC-123", Type: "Aceite", Nature: models.NaturePreventive, Date: date("2024-02-05")},
		{ID: "o2", VehicleID: "v2", Plate: "XYZ-999", Type: "Aceite", Nature: models.NaturePreventive, Date: date("2024-02-05")},
		{ID: "o3", VehicleID: "v1", Plate: "ABC-123", Type: "Aceite", Nature: models.NatureCorrective, Date: date("2024-02-20")},
		{ID: "o4", VehicleID: "v3", Plate: "DEF-456", Type: "Frenos", Nature: models.NaturePreventive, Date: date("2024-02-29")},
		{ID: "o5", VehicleID: "v1", Plate: "ABC-123", Type: "Aceite", Nature: models.NaturePreventive, Date: date("2024-03-01")},
	}
	completions := []models.Completion{
		{ID: "c1", VehicleID: "v1", Type: "Aceite", Date: date("2024-02-05")},
		{ID: "c2", VehicleID: "v2", Type: "Frenos", Date: date("2024-02-05")},
	}

	t.Run("all types", func(t *testing.T) {
		view := Aggregate(feb, "", today, occurrences, completions)

		require.Len(t, view.Days, 29)
		assert.Equal(t, date("2024-02-01"), view.Days[0].Date)
		assert.Equal(t, date("2024-02-29"), view.Days[28].Date)

		require.Len(t, view.Occurrences, 4)
		statuses := map[string]DueStatus{}
		for _, o := range view.Occurrences {
			statuses[o.ID] = o.Status
		}
		assert.Equal(t, StatusFulfilled, statuses["o1"])
		assert.Equal(t, StatusOverdue, statuses["o2"], "completion of another type must not fulfill")
		assert.Equal(t, StatusDueSoon, statuses["o3"])
		assert.Equal(t, StatusDueSoon, statuses["o4"])

		fifth := view.Days[4]
		assert.Equal(t, DayBucket{Date: date("2024-02-05"), Total: 2, Overdue: 1, Fulfilled: 1}, fifth)
		assert.Equal(t, 0, view.Days[5].Total)
		assert.Len(t, view.Completions, 2)
	})

	t.Run("type filter", func(t *testing.T) {
		view := Aggregate(feb, "Frenos", today, occurrences, completions)
		require.Len(t, view.Occurrences, 1)
		assert.Equal(t, "o4", view.Occurrences[0].ID)
		assert.Equal(t, 1, view.Days[28].Total)
		assert.Len(t, view.Completions, 1)
	})

	t.Run("sorted by date then plate", func(t *testing.T) {
		view := Aggregate(feb, "Aceite", today, occurrences, completions)
		var ids []string
		for _, o := range view.Occurrences {
			ids = append(ids, o.ID)
		}
		assert.Equal(t, []string{"o1", "o2", "o3"}, ids)
	})

	t.Run("idempotent", func(t *testing.T) {
		first := Aggregate(feb, "", today, occurrences, completions)
		second := Aggregate(feb, "", today, occurrences, completions)
		assert.Equal(t, first.Days, second.Days)
		assert.Equal(t, first, second)
	})

	t.Run("empty month still has every day", func(t *testing.T) {
		view := Aggregate(calendar.Month{Year: 2023, Month: 4}, "", today, nil, nil)
		assert.Len(t, view.Days, 30)
		assert.Empty(t, view.Occurrences)
		assert.NotNil(t, view.Occurrences)
	})
}

func TestMonthView_CloneDoesNotShare(t *testing.T) {
	view := Aggregate(calendar.Month{Year: 2024, Month: 1}, "", date("2024-01-01"), []models.Occurrence{
		{ID: "o1", VehicleID: "v1", Type: "Aceite", Nature: models.NaturePreventive, Date: date("2024-01-10")},
	}, nil)

	c := view.clone()
	c.Days[9].Total = 42
	c.Occurrences[0].ID = "changed"

	assert.Equal(t, 1, view.Days[9].Total)
	assert.Equal(t, "o1", view.Occurrences[0].ID)
}
