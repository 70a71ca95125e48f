package calendar

import (
	"context"
	"time"
)

// fixedHolidays are the statutory holidays observed every year (month, day).
// Lunar-calendar holidays use simplified fixed dates.
var fixedHolidays = [][2]int{
	{1, 1},   // New Year's Day
	{1, 28},  // Lunar New Year
	{1, 29},  // Lunar New Year
	{1, 30},  // Lunar New Year
	{3, 1},   // Independence Movement Day
	{4, 8},   // Buddha's Birthday
	{5, 5},   // Children's Day
	{6, 6},   // Memorial Day
	{8, 14},  // Chuseok
	{8, 15},  // Liberation Day / Chuseok
	{8, 16},  // Chuseok
	{10, 3},  // National Foundation Day
	{10, 9},  // Hangeul Day
	{12, 25}, // Christmas Day
}

// StaticHolidaySource serves the fixed holiday table plus any extra dates
// supplied at construction. It never fails and needs no network access.
type StaticHolidaySource struct {
	extra map[int][]time.Time
}

// NewStaticHolidaySource creates a static source. Extra holiday dates may be
// passed in for one-off designated days.
func NewStaticHolidaySource(extra ...time.Time) *StaticHolidaySource {
	s := &StaticHolidaySource{extra: make(map[int][]time.Time)}
	for _, d := range extra {
		s.extra[d.Year()] = append(s.extra[d.Year()], d)
	}
	return s
}

// Holidays implements HolidaySource
func (s *StaticHolidaySource) Holidays(_ context.Context, year int) ([]time.Time, error) {
	dates := make([]time.Time, 0, len(fixedHolidays))
	for _, md := range fixedHolidays {
		dates = append(dates, time.Date(year, time.Month(md[0]), md[1], 0, 0, 0, 0, time.UTC))
	}
	dates = append(dates, s.extra[year]...)
	return dates, nil
}
