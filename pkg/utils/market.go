package utils

import "time"

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IndiaLocation)
}

// IsTradingHours reports whether t falls inside the NSE equity derivatives
// session, 09:15 to 15:30 IST on weekdays. Exchange holidays are not modelled.
func IsTradingHours(t time.Time) bool {
	t = t.In(IndiaLocation)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 555 && minutes < 930
}

// MarketHoursHint returns a short note for errors raised outside trading
// hours, or an empty string during the session.
func MarketHoursHint(t time.Time) string {
	if IsTradingHours(t) {
		return ""
	}
	return "NSE data is usually only served during market hours (Mon-Fri 09:15-15:30 IST)"
}

// NextSessionOpen returns the next 09:15 IST session open after t.
func NextSessionOpen(t time.Time) time.Time {
	t = t.In(IndiaLocation)
	next := time.Date(t.Year(), t.Month(), t.Day(), 9, 15, 0, 0, IndiaLocation)
	if !t.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
