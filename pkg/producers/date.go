package producers

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DateFormat is one of the fixed renderings emitted for every date.
type DateFormat int

const (
	DayMonthYear DateFormat = iota // DDMMYYYY
	YearMonthDay                   // YYYYMMDD
	MonthDayYear                   // MMDDYYYY
)

// DefaultDateFormats is used when NewDate is given no formats.
var DefaultDateFormats = []DateFormat{DayMonthYear, YearMonthDay}

func (f DateFormat) String() string {
	switch f {
	case DayMonthYear:
		return "ddmmyyyy"
	case YearMonthDay:
		return "yyyymmdd"
	case MonthDayYear:
		return "mmddyyyy"
	}
	return fmt.Sprintf("DateFormat(%d)", int(f))
}

// ParseDateFormat accepts the names returned by DateFormat.String.
func ParseDateFormat(s string) (DateFormat, error) {
	for _, f := range []DateFormat{DayMonthYear, YearMonthDay, MonthDayYear} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown date format %q", ErrInvalidRange, s)
}

func (f DateFormat) appendDate(dst []byte, t time.Time) []byte {
	y, m, d := uint64(t.Year()), uint64(t.Month()), uint64(t.Day())
	switch f {
	case DayMonthYear:
		dst = appendPadded(dst, d, 2)
		dst = appendPadded(dst, m, 2)
		return appendPadded(dst, y, 4)
	case YearMonthDay:
		dst = appendPadded(dst, y, 4)
		dst = appendPadded(dst, m, 2)
		return appendPadded(dst, d, 2)
	default:
		dst = appendPadded(dst, m, 2)
		dst = appendPadded(dst, d, 2)
		return appendPadded(dst, y, 4)
	}
}

// Date enumerates the calendar days from start to end inclusive, emitting
// each day in every configured format before moving to the next day.
type Date struct {
	formats []DateFormat
	end     time.Time
	size    uint64

	mu      sync.Mutex
	cur     time.Time
	pending [][]byte
	done    bool
}

// NewDate returns a producer over [start, end]. Only the calendar date of
// start and end matters; the time of day and location are ignored.
func NewDate(start, end time.Time, formats ...DateFormat) (*Date, error) {
	start, end = civil(start), civil(end)
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	if start.Year() < 0 || end.Year() > 9999 {
		return nil, fmt.Errorf("%w: years must lie within 0..9999", ErrInvalidRange)
	}
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	for _, f := range formats {
		if f < DayMonthYear || f > MonthDayYear {
			return nil, fmt.Errorf("%w: unknown date format %d", ErrInvalidRange, int(f))
		}
	}
	days := uint64((end.Unix()-start.Unix())/86400) + 1
	return &Date{
		formats: append([]DateFormat(nil), formats...),
		end:     end,
		size:    days * uint64(len(formats)),
		cur:     start,
	}, nil
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (d *Date) Next() ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.pending) == 0 {
		if d.done || d.cur.After(d.end) {
			d.done = true
			return nil, false
		}
		d.pending = d.render(d.cur)
		d.cur = d.cur.AddDate(0, 0, 1)
	}
	c := d.pending[0]
	d.pending = d.pending[1:]
	return c, true
}

// render returns the distinct renderings of t, in format order.
func (d *Date) render(t time.Time) [][]byte {
	out := make([][]byte, 0, len(d.formats))
outer:
	for _, f := range d.formats {
		c := f.appendDate(make([]byte, 0, 8), t)
		for _, prev := range out {
			if bytes.Equal(prev, c) {
				continue outer
			}
		}
		out = append(out, c)
	}
	return out
}

// Size counts every format of every day, so it is an upper bound when two
// formats coincide on some date.
func (d *Date) Size() uint64 { return d.size }
