package model

import (
	"time"
)

// NonWorkingCalendar is the resolved set of non-working dates for a range.
// Holidays is a subset of Dates; weekend days appear only in Dates.
type NonWorkingCalendar struct {
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Policy   WeekPolicy  `json:"policy"`
	Dates    []time.Time `json:"dates"`
	Holidays []time.Time `json:"holidays"`
}

// WeatherDay describes forecast conditions for a single date
type WeatherDay struct {
	Date      time.Time `json:"date"`
	Condition string    `json:"condition"`
	TempC     float64   `json:"temp_c"`
	WindSpeed float64   `json:"wind_speed"`
	Humidity  int       `json:"humidity"`
	Suitable  bool      `json:"construction_suitable"`
	Reason    string    `json:"reason,omitempty"`
}

// WeatherWindow is a resolved forecast over a date range
type WeatherWindow struct {
	Location string       `json:"location"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Days     []WeatherDay `json:"days"`
}

// UnsuitableDates returns the dates flagged unsuitable for construction,
// in forecast order
func (w *WeatherWindow) UnsuitableDates() []time.Time {
	var dates []time.Time
	for _, day := range w.Days {
		if !day.Suitable {
			dates = append(dates, DateOnly(day.Date))
		}
	}
	return dates
}

// DelayRow is a per-date delay record attributed to adverse weather
type DelayRow struct {
	Date       time.Time `json:"date"`
	Reason     string    `json:"reason"`
	Affected   []string  `json:"affected"`
	DayDelay   int       `json:"day_delay"`
	Cumulative int       `json:"cumulative"`
}

// DelayAnalysis is the converged result of overlaying non-working days and
// adverse weather on an ideal schedule
type DelayAnalysis struct {
	TotalDelayDays     int         `json:"total_delay_days"`
	WeatherDelayDays   int         `json:"weather_delay_days"`
	CalendarDelayDays  int         `json:"calendar_delay_days"`
	WeatherOverlapDays int         `json:"weather_overlap_days"`
	WeatherBadDates    []time.Time `json:"weather_bad_dates,omitempty"`
	Rows               []DelayRow  `json:"rows,omitempty"`
	NewProjectDuration int         `json:"new_project_duration"`
	NewEndDate         time.Time   `json:"new_end_date"`
	Iterations         int         `json:"iterations"`
	Converged          bool        `json:"converged"`
}
