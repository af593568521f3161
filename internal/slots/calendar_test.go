package slots

import (
	"testing"
	"time"

	"giftwrap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "23:59", want: 1439},
		{in: "9:00", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "06:00", FormatClock(360))
	assert.Equal(t, "18:45", FormatClock(18*60+45))
	assert.Equal(t, "25:00", FormatClock(1500))
}

func TestIsPastDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC on Dec 9 is already Dec 10 in UTC+3.
	now := time.Date(2026, 12, 9, 22, 30, 0, 0, time.UTC)

	past, err := IsPastDate("2026-12-09", now, loc)
	require.NoError(t, err)
	assert.True(t, past)

	past, err = IsPastDate("2026-12-10", now, loc)
	require.NoError(t, err)
	assert.False(t, past)

	_, err = IsPastDate("10.12.2026", now, loc)
	assert.Error(t, err)
}

func TestDefaultWindow(t *testing.T) {
	got := DefaultWindow().Slots()
	assert.Len(t, got, 13)
	assert.Equal(t, "06:00", got[0])
	assert.Equal(t, "18:00", got[len(got)-1])
}

func TestNewWindow(t *testing.T) {
	w, err := NewWindow("09:00", "11:00", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00"}, w.Slots())

	_, err = NewWindow("11:00", "09:00", 60)
	assert.Error(t, err)
	_, err = NewWindow("09:00", "11:00", 0)
	assert.Error(t, err)
}

func TestResolveBaseSlots(t *testing.T) {
	monday := "2024-01-01"
	sched := &model.Schedule{
		Weekly: map[int]model.DaySchedule{
			int(time.Monday):   {Slots: []string{"09:00", "10:00", "11:00"}},
			int(time.Sunday):   {IsBlocked: true, Slots: []string{"10:00"}},
			int(time.Saturday): {},
		},
		Overrides: []model.DateOverride{
			{Date: "2024-01-08", IsAvailable: false},
			{Date: "2024-01-15", IsAvailable: true, Slots: []string{"12:00", "13:00"}},
			{Date: "2024-01-07", IsAvailable: true, Slots: []string{"14:00"}},
		},
	}

	tests := []struct {
		name string
		date string
		want []string
	}{
		{name: "weekly template", date: monday, want: []string{"09:00", "10:00", "11:00"}},
		{name: "blocked weekday", date: "2024-01-14", want: []string{}},
		{name: "unavailable override beats template", date: "2024-01-08", want: []string{}},
		{name: "available override replaces slots", date: "2024-01-15", want: []string{"12:00", "13:00"}},
		{name: "override reopens blocked weekday", date: "2024-01-07", want: []string{"14:00"}},
		{name: "no entry uses default window", date: "2024-01-02", want: DefaultWindow().Slots()},
		{name: "empty entry uses default window", date: "2024-01-06", want: DefaultWindow().Slots()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveBaseSlots(tt.date, sched, DefaultWindow())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nil schedule", func(t *testing.T) {
		got, err := ResolveBaseSlots(monday, nil, DefaultWindow())
		require.NoError(t, err)
		assert.Equal(t, DefaultWindow().Slots(), got)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := ResolveBaseSlots("2024-13-01", sched, DefaultWindow())
		assert.Error(t, err)
	})

	t.Run("result is a copy", func(t *testing.T) {
		got, err := ResolveBaseSlots(monday, sched, DefaultWindow())
		require.NoError(t, err)
		got[0] = "changed"
		assert.Equal(t, "09:00", sched.Weekly[int(time.Monday)].Slots[0])
	})
}

func TestIsDayClosed(t *testing.T) {
	sched := &model.Schedule{
		Weekly: map[int]model.DaySchedule{
			int(time.Sunday): {IsBlocked: true},
		},
		Overrides: []model.DateOverride{
			{Date: "2024-01-03", IsAvailable: false},
			{Date: "2024-01-07", IsAvailable: true, Slots: []string{"10:00"}},
		},
	}

	closed, err := IsDayClosed("2024-01-14", sched)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = IsDayClosed("2024-01-03", sched)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = IsDayClosed("2024-01-07", sched)
	require.NoError(t, err)
	assert.False(t, closed)

	closed, err = IsDayClosed("2024-01-02", sched)
	require.NoError(t, err)
	assert.False(t, closed)
}
