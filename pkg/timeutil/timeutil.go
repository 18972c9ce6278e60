// Package timeutil handles the 17-digit exchange timestamp format
// YYYYMMDDHHMMSSmmm used by tick archives and the replay clock.
package timeutil

import (
	"fmt"
	"time"
)

const (
	// Intraday boundaries in HHMMSSmmm form.
	ContinuousOpen    int64 = 93000000  // 09:30:00.000
	ClosingAuction    int64 = 145700000 // 14:57:00.000
	SessionEnd        int64 = 150000000 // 15:00:00.000
	intradayModulus   int64 = 1_000_000_000
	minStamp          int64 = 10_000_000_000_000_000 // 17 digits
	maxStamp          int64 = 100_000_000_000_000_000
)

// Compose builds a stamp from a YYYYMMDD date and an HHMMSSmmm intraday part.
func Compose(date int64, intraday int64) int64 {
	return date*intradayModulus + intraday
}

// Split returns the YYYYMMDD date and HHMMSSmmm intraday parts of a stamp.
func Split(stamp int64) (date int64, intraday int64) {
	return stamp / intradayModulus, stamp % intradayModulus
}

// IsValid reports whether stamp is a parseable 17-digit timestamp.
func IsValid(stamp int64) bool {
	_, err := ToTime(stamp)
	return err == nil
}

// ToTime converts a 17-digit stamp to a time.Time in UTC.
func ToTime(stamp int64) (time.Time, error) {
	if stamp < minStamp || stamp >= maxStamp {
		return time.Time{}, fmt.Errorf("timestamp %d is not a 17-digit stamp", stamp)
	}
	date, intraday := Split(stamp)
	year := int(date / 10000)
	month := int(date / 100 % 100)
	day := int(date % 100)
	hour := int(intraday / 10000000)
	minute := int(intraday / 100000 % 100)
	sec := int(intraday / 1000 % 100)
	ms := int(intraday % 1000)

	t := time.Date(year, time.Month(month), day, hour, minute, sec, ms*int(time.Millisecond), time.UTC)
	// time.Date normalizes out-of-range components, so round-trip to detect them.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != sec {
		return time.Time{}, fmt.Errorf("timestamp %d has out-of-range components", stamp)
	}
	return t, nil
}

// FromTime converts a time.Time to a 17-digit stamp.
func FromTime(t time.Time) int64 {
	date := int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
	intraday := int64(t.Hour())*10000000 + int64(t.Minute())*100000 +
		int64(t.Second())*1000 + int64(t.Nanosecond()/int(time.Millisecond))
	return Compose(date, intraday)
}

// AddMillis adds a millisecond delta to a stamp with calendar carry.
func AddMillis(stamp int64, ms int64) (int64, error) {
	t, err := ToTime(stamp)
	if err != nil {
		return 0, err
	}
	return FromTime(t.Add(time.Duration(ms) * time.Millisecond)), nil
}

// DiffMillis returns a-b in milliseconds.
func DiffMillis(a, b int64) (int64, error) {
	ta, err := ToTime(a)
	if err != nil {
		return 0, err
	}
	tb, err := ToTime(b)
	if err != nil {
		return 0, err
	}
	return ta.Sub(tb).Milliseconds(), nil
}

// InCallAuction reports whether the stamp falls in the opening or closing
// call auction window.
func InCallAuction(stamp int64) bool {
	_, intraday := Split(stamp)
	return intraday < ContinuousOpen || intraday > ClosingAuction
}

// AfterClose reports whether the stamp is at or past the session close.
func AfterClose(stamp int64) bool {
	_, intraday := Split(stamp)
	return intraday >= SessionEnd
}
