package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	secondsPerHour = 3600
	secondsPerDay  = 86400
	nanosPerHour   = 3.6e12

	// DefaultOffsetDays aligns the reanalysis "hours since 1-1-1" axis with the
	// proleptic Gregorian calendar when counted from DefaultEpoch.
	DefaultOffsetDays = 693962
)

// DefaultEpoch is the nominal reference of the dataset time axis.
var DefaultEpoch = time.Date(1901, 1, 1, 0, 0, 0, 0, time.UTC)

// Unix seconds bounding the calendar ToCalendar will produce: years 0 through 9999.
var (
	minCalendarSec = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	maxCalendarSec = time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
)

// TimeCodec converts between a dataset's numeric time coordinate (hours) and
// calendar time. The conversion is the affine map
//
//	t = Epoch + hours - OffsetDays
//
// computed on integer Unix seconds and nanoseconds, since the spans involved
// (close to two millennia) overflow time.Duration.
type TimeCodec struct {
	Epoch      time.Time
	OffsetDays int64
}

// DefaultTimeCodec returns the codec for NCEP/NCAR reanalysis monthly files.
func DefaultTimeCodec() TimeCodec {
	return TimeCodec{
		Epoch:      DefaultEpoch,
		OffsetDays: DefaultOffsetDays,
	}
}

// base returns the Unix second that corresponds to zero hours.
func (c TimeCodec) base() int64 {
	return c.Epoch.Unix() - c.OffsetDays*secondsPerDay
}

// ToCalendar converts raw hours to a UTC calendar time. Whole hours and the
// fractional remainder are converted separately so that every float64 hour
// value coarser than a nanosecond lands on its own instant.
func (c TimeCodec) ToCalendar(hours float64) (time.Time, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return time.Time{}, fmt.Errorf("%w: %v hours", ErrTimeOverflow, hours)
	}

	whole := math.Floor(hours)
	base := c.base()
	// Bounds are checked in float64 so out-of-range input never reaches int64.
	if whole*secondsPerHour < float64(minCalendarSec-base) || whole*secondsPerHour >= float64(maxCalendarSec-base) {
		return time.Time{}, fmt.Errorf("%w: %v hours", ErrTimeOverflow, hours)
	}

	nanos := int64(math.Round((hours - whole) * nanosPerHour))
	t := time.Unix(base+int64(whole)*secondsPerHour, nanos).UTC()
	if t.Unix() >= maxCalendarSec {
		return time.Time{}, fmt.Errorf("%w: %v hours", ErrTimeOverflow, hours)
	}
	return t, nil
}

// FromCalendar converts a calendar time back to raw hours. The result is the
// float64 that ToCalendar maps back to t whenever one exists.
func (c TimeCodec) FromCalendar(t time.Time) float64 {
	sec := t.Unix() - c.base()
	whole := sec / secondsPerHour
	if sec%secondsPerHour < 0 {
		whole--
	}
	rem := (sec-whole*secondsPerHour)*1e9 + int64(t.Nanosecond())
	hours := float64(whole) + float64(rem)/nanosPerHour

	got, err := c.ToCalendar(hours)
	if err != nil || got.Equal(t) {
		return hours
	}
	dir := math.Inf(1)
	if got.After(t) {
		dir = math.Inf(-1)
	}
	h := hours
	for range 4 {
		h = math.Nextafter(h, dir)
		got, err = c.ToCalendar(h)
		if err != nil {
			break
		}
		if got.Equal(t) {
			return h
		}
		if got.After(t) != (dir < 0) {
			// Stepped past t: no float64 maps onto it exactly.
			break
		}
	}
	return hours
}

// Window is the half-open admission interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the 1960-2010 window used for the monthly series.
func DefaultWindow() Window {
	return Window{
		Start: time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Validate checks that the window is non-empty.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s must be before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t is admitted by the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
