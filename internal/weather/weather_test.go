package weather

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssess(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		wind      float64
		temp      float64
		suitable  bool
		reason    string
	}{
		{"Clear Mild Day", "clear", 4, 20, true, ""},
		{"Rain", "rain", 2, 20, false, "rain forecast"},
		{"Snow", "snow", 2, -1, false, "snow forecast"},
		{"High Wind", "clear", 12, 20, false, "high wind"},
		{"Too Cold", "clear", 3, -10, false, "extreme temperature"},
		{"Too Hot", "clear", 3, 38, false, "extreme temperature"},
		{"Boundary Wind Is Fine", "clear", 10, 20, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suitable, reason := Assess(tt.condition, tt.wind, tt.temp)
			assert.Equal(t, tt.suitable, suitable)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestStubForecast(t *testing.T) {
	source := NewStubForecast("Seoul")
	start := time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)

	window, err := source.Forecast(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "Seoul", window.Location)
	require.Len(t, window.Days, 7)
	assert.Equal(t, start, window.Days[0].Date)
	assert.Equal(t, end, window.Days[6].Date)

	t.Run("Deterministic", func(t *testing.T) {
		again, err := source.Forecast(context.Background(), start, end)
		require.NoError(t, err)
		assert.Equal(t, window, again)
	})

	t.Run("Unsuitable Days Carry Reasons", func(t *testing.T) {
		for _, day := range window.Days {
			if !day.Suitable {
				assert.NotEmpty(t, day.Reason)
			} else {
				assert.Empty(t, day.Reason)
			}
		}
	})
}
