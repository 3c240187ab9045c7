package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"evcal/internal/errdef"
	"evcal/internal/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)}
	st, err := Open(filepath.Join(t.TempDir(), "calendar.db"),
		WithLocation(time.UTC),
		WithClock(clock.Now),
		WithLogger(logger.Discard),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, clock
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func addEvent(t *testing.T, st *Store, title, start, end string) int64 {
	t.Helper()
	id, err := st.Add(context.Background(), model.EventInput{Title: title, StartTime: at(start), EndTime: at(end)})
	require.NoError(t, err)
	return id
}

func titles(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Title)
	}
	return out
}

func TestAddAppliesDefaults(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()

	id, err := st.Add(ctx, model.EventInput{
		Title:     "Standup",
		StartTime: at("2024-01-10 09:00:00"),
		EndTime:   at("2024-01-10 09:30:00"),
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Standup", got.Title)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, "", got.Location)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, model.DefaultColor, got.Color)
	assert.False(t, got.IsRecurring)
	assert.Equal(t, model.RecurrenceNone, got.RecurrenceType)
	assert.Nil(t, got.RecurrenceEndDate)
	assert.True(t, at("2024-01-10 09:00:00").Equal(got.StartTime))
	assert.True(t, at("2024-01-10 09:30:00").Equal(got.EndTime))
	assert.True(t, clock.Now().Equal(got.CreatedAt))
	assert.True(t, clock.Now().Equal(got.UpdatedAt))
}

func TestAddStoresAllFields(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	until := at("2024-03-01 00:00:00")
	in := model.EventInput{
		Title:             "Gym",
		Description:       "Leg day",
		Location:          "Downtown",
		StartTime:         at("2024-01-10 18:00:00"),
		EndTime:           at("2024-01-10 19:00:00"),
		Priority:          model.PriorityHigh,
		Color:             "#ff0000",
		IsRecurring:       true,
		RecurrenceType:    model.RecurrenceWeekly,
		RecurrenceEndDate: &until,
	}

	id, err := st.Add(ctx, in)
	require.NoError(t, err)
	got, err := st.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.Location, got.Location)
	assert.Equal(t, in.Priority, got.Priority)
	assert.Equal(t, in.Color, got.Color)
	assert.True(t, got.IsRecurring)
	assert.Equal(t, model.RecurrenceWeekly, got.RecurrenceType)
	require.NotNil(t, got.RecurrenceEndDate)
	assert.True(t, until.Equal(*got.RecurrenceEndDate))
}

func TestAddTruncatesToSeconds(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	id, err := st.Add(ctx, model.EventInput{
		Title:     "Precise",
		StartTime: at("2024-01-10 09:00:00").Add(750 * time.Millisecond),
		EndTime:   at("2024-01-10 10:00:00"),
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, at("2024-01-10 09:00:00").Equal(got.StartTime))
}

func TestAddClearsRecurrenceOfOneOffEvents(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	until := at("2024-03-01 00:00:00")

	id, err := st.Add(ctx, model.EventInput{
		Title:             "Once",
		StartTime:         at("2024-01-10 09:00:00"),
		EndTime:           at("2024-01-10 10:00:00"),
		RecurrenceType:    model.RecurrenceDaily,
		RecurrenceEndDate: &until,
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.RecurrenceNone, got.RecurrenceType)
	assert.Nil(t, got.RecurrenceEndDate)
}

func TestAddValidation(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	start, end := at("2024-01-10 09:00:00"), at("2024-01-10 10:00:00")

	t.Run("missing title", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "  ", StartTime: start, EndTime: end})
		assert.True(t, errdef.IsMissingField(err))
	})

	t.Run("missing start", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "x", EndTime: end})
		assert.True(t, errdef.IsMissingField(err))
	})

	t.Run("missing end", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "x", StartTime: start})
		assert.True(t, errdef.IsMissingField(err))
	})

	t.Run("unknown priority", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "x", StartTime: start, EndTime: end, Priority: "urgent"})
		assert.True(t, errdef.IsValidation(err))
		assert.False(t, errdef.IsMissingField(err))
	})

	t.Run("bad color", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "x", StartTime: start, EndTime: end, Color: "blue"})
		assert.True(t, errdef.IsValidation(err))
	})

	t.Run("unknown recurrence", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "x", StartTime: start, EndTime: end, IsRecurring: true, RecurrenceType: "hourly"})
		assert.True(t, errdef.IsValidation(err))
	})

	t.Run("priority is case-insensitive", func(t *testing.T) {
		id, err := st.Add(ctx, model.EventInput{Title: "x", StartTime: start, EndTime: end, Priority: "HIGH"})
		require.NoError(t, err)
		got, err := st.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.PriorityHigh, got.Priority)
	})
}

func TestAddAcceptsReversedInterval(t *testing.T) {
	st, _ := newTestStore(t)

	// The store does not enforce end > start.
	id := addEvent(t, st, "Backwards", "2024-01-10 10:00:00", "2024-01-10 09:00:00")

	assert.NotZero(t, id)
}

func TestAddAll(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	ids, err := st.AddAll(ctx, []model.EventInput{
		{Title: "First", StartTime: at("2024-01-10 09:00:00"), EndTime: at("2024-01-10 10:00:00")},
		{Title: "Second", StartTime: at("2024-01-11 09:00:00"), EndTime: at("2024-01-11 10:00:00")},
	})

	require.NoError(t, err)
	require.Len(t, ids, 2)
	for _, id := range ids {
		history, err := st.GetHistory(ctx, id)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, model.ActionCreate, history[0].Action)
	}
}

func TestAddAllIsAllOrNothing(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	_, err := st.AddAll(ctx, []model.EventInput{
		{Title: "Fine", StartTime: at("2024-01-10 09:00:00"), EndTime: at("2024-01-10 10:00:00")},
		{Title: "Loud", StartTime: at("2024-01-10 09:00:00"), EndTime: at("2024-01-10 10:00:00"), Priority: "urgent"},
	})

	require.Error(t, err)
	assert.True(t, errdef.IsValidation(err))
	events, err := st.GetByDateRange(ctx, at("2024-01-01 00:00:00"), at("2024-12-31 23:59:59"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetNotFound(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := st.Get(context.Background(), 42)

	assert.True(t, errdef.IsNotFound(err))
}

func TestUpdateReplacesAllFields(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()
	until := at("2024-02-01 00:00:00")
	id, err := st.Add(ctx, model.EventInput{
		Title:             "Gym",
		Description:       "Leg day",
		StartTime:         at("2024-01-10 18:00:00"),
		EndTime:           at("2024-01-10 19:00:00"),
		Priority:          model.PriorityHigh,
		IsRecurring:       true,
		RecurrenceType:    model.RecurrenceDaily,
		RecurrenceEndDate: &until,
	})
	require.NoError(t, err)
	created := clock.Now()
	clock.Advance(time.Hour)

	err = st.Update(ctx, id, model.EventInput{
		Title:     "Yoga",
		StartTime: at("2024-01-11 07:00:00"),
		EndTime:   at("2024-01-11 08:00:00"),
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Yoga", got.Title)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.False(t, got.IsRecurring)
	assert.Equal(t, model.RecurrenceNone, got.RecurrenceType)
	assert.Nil(t, got.RecurrenceEndDate)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, clock.Now().Equal(got.UpdatedAt))
}

func TestUpdateNotFound(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	err := st.Update(ctx, 99, model.EventInput{Title: "x", StartTime: at("2024-01-10 09:00:00"), EndTime: at("2024-01-10 10:00:00")})

	assert.True(t, errdef.IsNotFound(err))
	history, err := st.GetHistory(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteKeepsHistory(t *testing.T) {
	st, clock := newTestStore(t)
	ctx := context.Background()
	id := addEvent(t, st, "Standup", "2024-01-10 09:00:00", "2024-01-10 09:30:00")
	clock.Advance(time.Minute)
	require.NoError(t, st.Update(ctx, id, model.EventInput{Title: "Standup v2", StartTime: at("2024-01-10 09:00:00"), EndTime: at("2024-01-10 09:30:00")}))
	clock.Advance(time.Minute)

	require.NoError(t, st.Delete(ctx, id))

	_, err := st.Get(ctx, id)
	assert.True(t, errdef.IsNotFound(err))

	history, err := st.GetHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.ActionDelete, history[0].Action)
	assert.Equal(t, model.ActionUpdate, history[1].Action)
	assert.Equal(t, model.ActionCreate, history[2].Action)
	for _, h := range history {
		assert.Equal(t, id, h.EventID)
	}
	assert.True(t, history[0].Timestamp.After(history[1].Timestamp))
}

func TestHistoryOrderWithinOneSecond(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := addEvent(t, st, "Quick", "2024-01-10 09:00:00", "2024-01-10 09:30:00")
	require.NoError(t, st.Delete(ctx, id))

	history, err := st.GetHistory(ctx, id)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ActionDelete, history[0].Action)
	assert.Equal(t, model.ActionCreate, history[1].Action)
}

func TestDeleteNotFound(t *testing.T) {
	st, _ := newTestStore(t)

	err := st.Delete(context.Background(), 7)

	assert.True(t, errdef.IsNotFound(err))
}

func TestDeletedIDIsNotReused(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	first := addEvent(t, st, "A", "2024-01-10 09:00:00", "2024-01-10 10:00:00")
	require.NoError(t, st.Delete(ctx, first))

	second := addEvent(t, st, "B", "2024-01-10 09:00:00", "2024-01-10 10:00:00")

	assert.Greater(t, second, first)
}

func TestGetByDateRange(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	addEvent(t, st, "Standup", "2024-01-10 09:00:00", "2024-01-10 09:30:00")
	addEvent(t, st, "Late night", "2024-01-09 23:00:00", "2024-01-10 01:00:00")
	addEvent(t, st, "Overnight", "2024-01-10 23:00:00", "2024-01-11 01:00:00")
	addEvent(t, st, "Conference", "2024-01-08 09:00:00", "2024-01-12 17:00:00")
	addEvent(t, st, "Yesterday", "2024-01-09 09:00:00", "2024-01-09 10:00:00")
	addEvent(t, st, "Tomorrow", "2024-01-11 09:00:00", "2024-01-11 10:00:00")

	got, err := st.GetByDateRange(ctx, at("2024-01-10 00:00:00"), at("2024-01-10 23:59:59"))

	require.NoError(t, err)
	assert.Equal(t, []string{"Conference", "Late night", "Standup", "Overnight"}, titles(got))
}

func TestGetByDateRangeSingleEvent(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	id := addEvent(t, st, "Standup", "2024-01-10 09:00:00", "2024-01-10 09:30:00")

	got, err := st.GetByDateRange(ctx, at("2024-01-10 00:00:00"), at("2024-01-10 23:59:59"))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
}

func TestSearch(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_, err := st.Add(ctx, model.EventInput{Title: "Dentist", StartTime: at("2024-01-12 10:00:00"), EndTime: at("2024-01-12 11:00:00")})
	require.NoError(t, err)
	_, err = st.Add(ctx, model.EventInput{Title: "Lunch", Description: "with the DENTIST", StartTime: at("2024-01-10 12:00:00"), EndTime: at("2024-01-10 13:00:00")})
	require.NoError(t, err)
	_, err = st.Add(ctx, model.EventInput{Title: "Checkup", Location: "Dentist office", StartTime: at("2024-02-01 10:00:00"), EndTime: at("2024-02-01 11:00:00")})
	require.NoError(t, err)
	_, err = st.Add(ctx, model.EventInput{Title: "Gym", StartTime: at("2024-01-11 10:00:00"), EndTime: at("2024-01-11 11:00:00")})
	require.NoError(t, err)

	t.Run("all fields, case-insensitive", func(t *testing.T) {
		got, err := st.Search(ctx, "dentist", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Lunch", "Dentist", "Checkup"}, titles(got))
	})

	t.Run("restricted to range", func(t *testing.T) {
		got, err := st.Search(ctx, "dentist", &Range{Start: at("2024-01-01 00:00:00"), End: at("2024-01-31 23:59:59")})
		require.NoError(t, err)
		assert.Equal(t, []string{"Lunch", "Dentist"}, titles(got))
	})

	t.Run("no match", func(t *testing.T) {
		got, err := st.Search(ctx, "piano", nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("non-ASCII folding", func(t *testing.T) {
		_, err := st.Add(ctx, model.EventInput{Title: "ÉCOLE", StartTime: at("2024-01-13 10:00:00"), EndTime: at("2024-01-13 11:00:00")})
		require.NoError(t, err)
		got, err := st.Search(ctx, "école", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"ÉCOLE"}, titles(got))
	})
}

func TestGetUpcoming(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	// Clock is 2024-01-10 08:00:00.
	addEvent(t, st, "Soon", "2024-01-10 08:10:00", "2024-01-10 09:00:00")
	addEvent(t, st, "Edge", "2024-01-10 08:15:00", "2024-01-10 09:00:00")
	addEvent(t, st, "Later", "2024-01-10 08:16:00", "2024-01-10 09:00:00")
	addEvent(t, st, "Started", "2024-01-10 07:59:00", "2024-01-10 09:00:00")

	got, err := st.GetUpcoming(ctx, 15)

	require.NoError(t, err)
	assert.Equal(t, []string{"Soon", "Edge"}, titles(got))
}

func TestListRecurring(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()
	_, err := st.Add(ctx, model.EventInput{Title: "Weekly", StartTime: at("2024-01-01 09:00:00"), EndTime: at("2024-01-01 10:00:00"), IsRecurring: true, RecurrenceType: model.RecurrenceWeekly})
	require.NoError(t, err)
	_, err = st.Add(ctx, model.EventInput{Title: "Future", StartTime: at("2024-06-01 09:00:00"), EndTime: at("2024-06-01 10:00:00"), IsRecurring: true, RecurrenceType: model.RecurrenceDaily})
	require.NoError(t, err)
	addEvent(t, st, "Once", "2024-01-01 09:00:00", "2024-01-01 10:00:00")

	got, err := st.ListRecurring(ctx, at("2024-01-31 23:59:59"))

	require.NoError(t, err)
	assert.Equal(t, []string{"Weekly"}, titles(got))
}

func TestSettings(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("defaults are seeded", func(t *testing.T) {
		all, err := st.Settings(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"theme": "light", "language": "en", "notification_time": "15"}, all)
		assert.Equal(t, []string{"language", "notification_time", "theme"}, SettingKeys(all))
	})

	t.Run("set is idempotent", func(t *testing.T) {
		require.NoError(t, st.SetSetting(ctx, "theme", "dark"))
		require.NoError(t, st.SetSetting(ctx, "theme", "dark"))

		v, ok, err := st.GetSetting(ctx, "theme")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "dark", v)

		all, err := st.Settings(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("unknown key is stored verbatim", func(t *testing.T) {
		require.NoError(t, st.SetSetting(ctx, "last_view", "week"))
		v, ok, err := st.GetSetting(ctx, "last_view")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "week", v)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := st.GetSetting(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("known keys are validated", func(t *testing.T) {
		assert.True(t, errdef.IsValidation(st.SetSetting(ctx, "theme", "neon")))
		assert.True(t, errdef.IsValidation(st.SetSetting(ctx, "language", "fr")))
		assert.True(t, errdef.IsValidation(st.SetSetting(ctx, "notification_time", "soon")))
		assert.True(t, errdef.IsMissingField(st.SetSetting(ctx, "", "x")))
	})
}

func TestSeedDoesNotOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.db")
	ctx := context.Background()

	st, err := Open(path, WithLogger(logger.Discard))
	require.NoError(t, err)
	require.NoError(t, st.SetSetting(ctx, "language", "es"))
	require.NoError(t, st.Close())

	st, err = Open(path, WithLogger(logger.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	v, _, err := st.GetSetting(ctx, "language")
	require.NoError(t, err)
	assert.Equal(t, "es", v)
}

func TestNotificationLead(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	lead, err := st.NotificationLead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, lead)

	require.NoError(t, st.SetSetting(ctx, "notification_time", "30"))
	lead, err = st.NotificationLead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, lead)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")

	assert.True(t, errdef.IsMissingField(err))
}
