package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

// TestTimeCodec_RoundTrip tests that FromCalendar inverts ToCalendar.
func TestTimeCodec_RoundTrip(t *testing.T) {
	codec := DefaultTimeCodec()

	hours := []float64{
		0, 1, 7000, 7000.5, 7000.25,
		17067072, // 1948-01-01, first NCEP monthly step.
		17172264, // 1960-01-01.
		17610576, // 2010-01-01.
		-48,
	}
	for h := 0.0; h < 2.5e7; h += 99991.25 {
		hours = append(hours, h)
	}

	for _, h := range hours {
		ts, err := codec.ToCalendar(h)
		if err != nil {
			t.Fatalf("ToCalendar(%v): unexpected error: %v", h, err)
		}
		if got := codec.FromCalendar(ts); got != h {
			t.Errorf("round trip of %v hours: got %v (via %s)", h, got, ts.Format(time.RFC3339Nano))
		}
	}
}

// TestTimeCodec_RoundTripFractionalHours tests the round trip on arbitrary
// fractional hour values across the calendar range.
func TestTimeCodec_RoundTripFractionalHours(t *testing.T) {
	codec := DefaultTimeCodec()
	rng := rand.New(rand.NewSource(42))

	hours := []float64{
		1.3291201064369809e+07,
		17067072.000001,
		-2048.3,
		-8000.123456789,
		2048,
		8.76e7 - 0.5,
	}
	for i := 0; i < 100000; i++ {
		hours = append(hours, 2048+rng.Float64()*(2e7-2048))
	}
	for i := 0; i < 1000; i++ {
		hours = append(hours, -8000+rng.Float64()*(8000-2048))
	}

	failures := 0
	for _, h := range hours {
		ts, err := codec.ToCalendar(h)
		if err != nil {
			t.Fatalf("ToCalendar(%v): unexpected error: %v", h, err)
		}
		if got := codec.FromCalendar(ts); got != h {
			failures++
			if failures <= 5 {
				t.Errorf("round trip of %v hours: got %v (via %s)", h, got, ts.Format(time.RFC3339Nano))
			}
		}
	}
	if failures > 0 {
		t.Errorf("%d of %d hour values did not round trip", failures, len(hours))
	}
}

// TestTimeCodec_RoundTripMonthlyAxis walks a monthly axis the way the datasets encode it.
func TestTimeCodec_RoundTripMonthlyAxis(t *testing.T) {
	codec := DefaultTimeCodec()
	start := time.Date(1948, 1, 1, 0, 0, 0, 0, time.UTC)

	for m := 0; m < 12*70; m++ {
		want := start.AddDate(0, m, 0)
		h := codec.FromCalendar(want)
		got, err := codec.ToCalendar(h)
		if err != nil {
			t.Fatalf("month %d: %v", m, err)
		}
		if !got.Equal(want) {
			t.Fatalf("month %d: expected %s, got %s", m, want, got)
		}
		if back := codec.FromCalendar(got); back != h {
			t.Fatalf("month %d: hours %v did not round trip, got %v", m, h, back)
		}
	}
}

// TestTimeCodec_KnownDates pins the empirical offset to dates observed in the files.
func TestTimeCodec_KnownDates(t *testing.T) {
	codec := DefaultTimeCodec()

	tests := []struct {
		hours float64
		want  time.Time
	}{
		{17067072, time.Date(1948, 1, 1, 0, 0, 0, 0, time.UTC)},
		{17172264, time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)},
		{17610576, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{7000, time.Date(1, 10, 17, 16, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := codec.ToCalendar(tt.hours)
		if err != nil {
			t.Fatalf("ToCalendar(%v): %v", tt.hours, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("ToCalendar(%v): expected %s, got %s", tt.hours, tt.want, got)
		}
	}
}

// TestTimeCodec_Overflow tests that unrepresentable inputs fail instead of wrapping.
func TestTimeCodec_Overflow(t *testing.T) {
	codec := DefaultTimeCodec()

	for _, h := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e18, -1e18, 1e300} {
		if _, err := codec.ToCalendar(h); !errors.Is(err, ErrTimeOverflow) {
			t.Errorf("ToCalendar(%v): expected ErrTimeOverflow, got %v", h, err)
		}
	}
}

// TestWindow_Contains tests the half-open admission interval.
func TestWindow_Contains(t *testing.T) {
	w := DefaultWindow()

	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(1959, 12, 1, 0, 0, 0, 0, time.UTC), false},
		{time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(1985, 6, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2009, 12, 1, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		if got := w.Contains(tt.at); got != tt.want {
			t.Errorf("Contains(%s): expected %v, got %v", tt.at.Format(time.RFC3339), tt.want, got)
		}
	}
}

func TestWindow_Validate(t *testing.T) {
	at := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := (Window{Start: at, End: at}).Validate(); err == nil {
		t.Error("expected error for empty window")
	}
	if err := (Window{Start: at, End: at.Add(time.Hour)}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
