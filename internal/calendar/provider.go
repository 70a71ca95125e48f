package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// ErrInvalidPolicy is returned for a week policy outside {5d, 6d, 7d}
var ErrInvalidPolicy = errors.New("invalid week policy")

// Provider resolves the non-working dates for a date range under a work-week
// policy. Implementations own their own caching.
type Provider interface {
	NonWorkingDays(ctx context.Context, start, end time.Time, policy model.WeekPolicy) (*model.NonWorkingCalendar, error)
}

// HolidaySource supplies the holiday dates for a year. Backed by an external
// data source in production; tests and the bundled server use a static table.
type HolidaySource interface {
	Holidays(ctx context.Context, year int) ([]time.Time, error)
}

// StandardProvider resolves weekends by policy and holidays from a
// HolidaySource, memoizing holiday lookups per year
type StandardProvider struct {
	source HolidaySource

	mu    sync.Mutex
	years map[int]map[time.Time]struct{}
}

// NewStandardProvider creates a provider backed by the given holiday source
func NewStandardProvider(source HolidaySource) *StandardProvider {
	return &StandardProvider{
		source: source,
		years:  make(map[int]map[time.Time]struct{}),
	}
}

// NonWorkingDays implements Provider
func (p *StandardProvider) NonWorkingDays(ctx context.Context, start, end time.Time, policy model.WeekPolicy) (*model.NonWorkingCalendar, error) {
	switch policy {
	case model.WeekPolicyFiveDay, model.WeekPolicySixDay, model.WeekPolicySevenDay:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}

	start = model.DateOnly(start)
	end = model.DateOnly(end)
	cal := &model.NonWorkingCalendar{
		Start:    start,
		End:      end,
		Policy:   policy,
		Dates:    []time.Time{},
		Holidays: []time.Time{},
	}
	if end.Before(start) {
		return cal, nil
	}

	holidays := make(map[time.Time]struct{})
	for year := start.Year(); year <= end.Year(); year++ {
		set, err := p.holidaysFor(ctx, year)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve holidays for %d: %w", year, err)
		}
		for d := range set {
			holidays[d] = struct{}{}
		}
	}

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		_, isHoliday := holidays[d]
		if isHoliday {
			cal.Holidays = append(cal.Holidays, d)
		}
		if isHoliday || isWeekend(d, policy) {
			cal.Dates = append(cal.Dates, d)
		}
	}
	return cal, nil
}

// holidaysFor returns the memoized holiday set for a year
func (p *StandardProvider) holidaysFor(ctx context.Context, year int) (map[time.Time]struct{}, error) {
	p.mu.Lock()
	if set, ok := p.years[year]; ok {
		p.mu.Unlock()
		return set, nil
	}
	p.mu.Unlock()

	dates, err := p.source.Holidays(ctx, year)
	if err != nil {
		return nil, err
	}

	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[model.DateOnly(d)] = struct{}{}
	}

	p.mu.Lock()
	p.years[year] = set
	p.mu.Unlock()
	return set, nil
}

func isWeekend(d time.Time, policy model.WeekPolicy) bool {
	switch policy {
	case model.WeekPolicyFiveDay:
		return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
	case model.WeekPolicySixDay:
		return d.Weekday() == time.Sunday
	default:
		return false
	}
}
