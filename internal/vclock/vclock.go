// Package vclock maps real time onto a fixed-offset virtual time zone.
//
// All reminder decisions are taken against this zone so that behavior does not
// depend on the host's locale, DST rules, or configured TZ.
package vclock

import (
	"fmt"
	"time"
)

// DateKeyLayout is the layout used for DateKey values.
const DateKeyLayout = "2006-01-02"

// Clock is a pure view of a time source through a fixed UTC offset.
type Clock struct {
	location *time.Location
	source   func() time.Time
}

// New returns a Clock pinned to UTC+offsetHours. A nil source means time.Now.
func New(offsetHours int, source func() time.Time) *Clock {
	if source == nil {
		source = time.Now
	}
	name := fmt.Sprintf("GMT%+d", offsetHours)
	if offsetHours == 0 {
		name = "GMT"
	}
	return &Clock{
		location: time.FixedZone(name, offsetHours*3600),
		source:   source,
	}
}

// Location returns the virtual zone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// Now returns the current instant expressed in the virtual zone.
func (c *Clock) Now() time.Time {
	return c.source().In(c.location)
}

// MinutesSinceMidnight returns the virtual minute of day in [0, 1440).
func (c *Clock) MinutesSinceMidnight(t time.Time) int {
	v := t.In(c.location)
	return v.Hour()*60 + v.Minute()
}

// DateKey identifies the virtual calendar day containing t.
func (c *Clock) DateKey(t time.Time) string {
	return t.In(c.location).Format(DateKeyLayout)
}

// NextMidnight returns 00:00:00 of the virtual day following t.
func (c *Clock) NextMidnight(t time.Time) time.Time {
	v := t.In(c.location)
	return time.Date(v.Year(), v.Month(), v.Day()+1, 0, 0, 0, 0, c.location)
}

// UntilNextMidnight is NextMidnight(now) - now.
func (c *Clock) UntilNextMidnight() time.Duration {
	now := c.Now()
	return c.NextMidnight(now).Sub(now)
}

// FormatHM renders the virtual HH:MM of t.
func (c *Clock) FormatHM(t time.Time) string {
	return t.In(c.location).Format("15:04")
}
