package domain

import (
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
)

// MaxDate is used as an open upper bound for date windows.
var MaxDate = civil.Date{Year: 9999, Month: 12, Day: 31}

// DateRange is a half-open interval of calendar days: [CheckIn, CheckOut).
type DateRange struct {
	CheckIn  civil.Date `json:"check_in"`
	CheckOut civil.Date `json:"check_out"`
}

// NewDateRange validates that checkOut is strictly after checkIn.
func NewDateRange(checkIn, checkOut civil.Date) (DateRange, error) {
	if !checkIn.IsValid() || !checkOut.IsValid() {
		return DateRange{}, InvalidArgumentError{Field: "date", Reason: "not a calendar date"}
	}
	if !checkOut.After(checkIn) {
		return DateRange{}, InvalidRangeError{CheckIn: checkIn, CheckOut: checkOut}
	}
	return DateRange{CheckIn: checkIn, CheckOut: checkOut}, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, InvalidArgumentError{Field: "date", Reason: fmt.Sprintf("%q must be YYYY-MM-DD", s)}
	}
	return d, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a validated range.
func ParseDateRange(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(in, out)
}

// Night is the single-night range starting at d.
func Night(d civil.Date) DateRange {
	return DateRange{CheckIn: d, CheckOut: d.AddDays(1)}
}

func (r DateRange) Nights() int {
	return r.CheckOut.DaysSince(r.CheckIn)
}

// Overlaps uses half-open semantics: [a,b) and [c,d) overlap iff a < d and c < b.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(r.CheckOut)
}

func (r DateRange) Contains(d civil.Date) bool {
	return !d.Before(r.CheckIn) && d.Before(r.CheckOut)
}

func (r DateRange) String() string {
	return r.CheckIn.String() + "/" + r.CheckOut.String()
}

// PeakOccupancy returns the largest number of ranges covering any single day.
func PeakOccupancy(stays []DateRange) int {
	type edge struct {
		day   civil.Date
		delta int
	}

	edges := make([]edge, 0, len(stays)*2)
	for _, s := range stays {
		edges = append(edges, edge{s.CheckIn, 1}, edge{s.CheckOut, -1})
	}

	// departures on a day free the unit before arrivals on the same day take it
	slices.SortFunc(edges, func(a, b edge) int {
		switch {
		case a.day.Before(b.day):
			return -1
		case b.day.Before(a.day):
			return 1
		}
		return a.delta - b.delta
	})

	cur, peak := 0, 0
	for _, e := range edges {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}
