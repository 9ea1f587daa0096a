package window

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	good := map[string]int{"00:00": 0, "09:30": 570, "23:59": 1439, "24:00": 1440}
	for in, want := range good {
		got, err := ParseClock(in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseClock(%q) = %d, want %d", in, got, want)
		}
	}
	for _, in := range []string{"", "9:00", "25:00", "12:60", "24:01", "ab:cd", "0900"} {
		if _, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q): expected error", in)
		}
	}
}

func TestTimeRangeBoundaries(t *testing.T) {
	r := TimeRange{Start: "09:00", End: "17:00"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		at   time.Duration
		want bool
	}{
		{9 * time.Hour, true},
		{9*time.Hour - time.Nanosecond, false},
		{16*time.Hour + 59*time.Minute + 59*time.Second, true},
		{17 * time.Hour, false},
	}
	for _, c := range cases {
		if got := r.Contains(day.Add(c.at)); got != c.want {
			t.Errorf("Contains(%v) = %v, want %v", c.at, got, c.want)
		}
	}
}

func TestTimeRangeWrapsMidnight(t *testing.T) {
	r := TimeRange{Start: "22:00", End: "02:00"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if !r.Contains(day.Add(23 * time.Hour)) {
		t.Error("23:00 should be inside 22:00-02:00")
	}
	if !r.Contains(day.Add(time.Hour)) {
		t.Error("01:00 should be inside 22:00-02:00")
	}
	if r.Contains(day.Add(2 * time.Hour)) {
		t.Error("02:00 is the exclusive end")
	}
	if r.Contains(day.Add(12 * time.Hour)) {
		t.Error("12:00 should be outside 22:00-02:00")
	}
}

func TestActiveAttributesOvernightToStartDay(t *testing.T) {
	night := []TimeRange{{Start: "22:00", End: "02:00"}}
	mondays := []time.Weekday{time.Monday}
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tue := mon.AddDate(0, 0, 1)

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday late evening", mon.Add(23 * time.Hour), true},
		{"tuesday after midnight", tue.Add(time.Hour), true},
		{"tuesday at end", tue.Add(2 * time.Hour), false},
		{"monday after midnight belongs to sunday", mon.Add(time.Hour), false},
		{"tuesday late evening", tue.Add(23 * time.Hour), false},
	}
	for _, c := range cases {
		if got := Active(mondays, night, c.at); got != c.want {
			t.Errorf("%s: Active = %v, want %v", c.name, got, c.want)
		}
	}

	if day, ok := night[0].StartDay(tue.Add(time.Hour)); !ok || day != time.Monday {
		t.Errorf("StartDay = %v %v, want Monday true", day, ok)
	}
	sunday := mon.Add(-time.Hour) // Sunday 23:00
	if !Active(nil, night, sunday) {
		t.Error("empty days should match every day")
	}
	if day, _ := night[0].StartDay(mon.Add(time.Hour)); day != time.Sunday {
		t.Errorf("Monday 01:00 should start on Sunday, got %v", day)
	}
}

func TestValidate(t *testing.T) {
	if err := (TimeRange{Start: "10:00", End: "10:00"}).Validate(); err == nil {
		t.Error("empty range should be invalid")
	}
	if err := (TimeRange{Start: "24:00", End: "01:00"}).Validate(); err == nil {
		t.Error("range starting at 24:00 should be invalid")
	}
	if err := (TimeRange{Start: "18:00", End: "24:00"}).Validate(); err != nil {
		t.Errorf("18:00-24:00 should be valid: %v", err)
	}
	if err := ValidateDays([]time.Weekday{time.Monday, 9}); err == nil {
		t.Error("weekday 9 should be invalid")
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	if err != nil || loc != time.UTC {
		t.Fatalf("empty zone should resolve to UTC, got %v, %v", loc, err)
	}
	if _, err := Location("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
