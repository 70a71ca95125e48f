package weather

import (
	"context"
	"time"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// StubForecast generates a deterministic, season-shaped forecast. It stands
// in for a real forecast feed so analyses can run without network access;
// the same date always produces the same conditions.
type StubForecast struct {
	Location string
}

// NewStubForecast creates a stub source for the given location label
func NewStubForecast(location string) *StubForecast {
	return &StubForecast{Location: location}
}

// Forecast implements ForecastSource
func (s *StubForecast) Forecast(_ context.Context, start, end time.Time) (*model.WeatherWindow, error) {
	start = model.DateOnly(start)
	end = model.DateOnly(end)

	window := &model.WeatherWindow{
		Location: s.Location,
		Start:    start,
		End:      end,
		Days:     []model.WeatherDay{},
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		window.Days = append(window.Days, stubDay(d))
	}
	return window, nil
}

// stubDay derives one day's conditions from the date alone
func stubDay(d time.Time) model.WeatherDay {
	var baseTemp float64
	var rainProb float64
	switch {
	case d.Month() >= 3 && d.Month() <= 5: // spring
		baseTemp, rainProb = 15, 0.3
	case d.Month() >= 6 && d.Month() <= 8: // summer
		baseTemp, rainProb = 25, 0.5
	case d.Month() >= 9 && d.Month() <= 11: // fall
		baseTemp, rainProb = 18, 0.4
	default: // winter
		baseTemp, rainProb = 5, 0.2
	}

	dayOfYear := d.YearDay()
	temp := baseTemp + float64(dayOfYear%7-3)

	var condition string
	var windSpeed float64
	switch {
	case rainProb > 0.4:
		condition = "rain"
		windSpeed = float64(8 + dayOfYear%5)
	case temp < 0:
		condition = "snow"
		windSpeed = float64(5 + dayOfYear%3)
	default:
		condition = "clear"
		windSpeed = float64(3 + dayOfYear%4)
	}

	suitable, reason := Assess(condition, windSpeed, temp)
	return model.WeatherDay{
		Date:      d,
		Condition: condition,
		TempC:     temp,
		WindSpeed: windSpeed,
		Humidity:  60 + dayOfYear%20,
		Suitable:  suitable,
		Reason:    reason,
	}
}
