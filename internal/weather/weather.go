package weather

import (
	"context"
	"time"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// Thresholds beyond which outdoor construction work is not feasible
const (
	maxWindSpeed = 10.0 // m/s
	minTempC     = -5.0
	maxTempC     = 35.0
)

// ForecastSource supplies a resolved weather window for a date range
type ForecastSource interface {
	Forecast(ctx context.Context, start, end time.Time) (*model.WeatherWindow, error)
}

// Assess applies the construction suitability rule to raw conditions and
// returns the verdict with a reason when unsuitable
func Assess(condition string, windSpeed, tempC float64) (bool, string) {
	switch condition {
	case "rain":
		return false, "rain forecast"
	case "snow":
		return false, "snow forecast"
	}
	if windSpeed > maxWindSpeed {
		return false, "high wind"
	}
	if tempC < minTempC || tempC > maxTempC {
		return false, "extreme temperature"
	}
	return true, ""
}
