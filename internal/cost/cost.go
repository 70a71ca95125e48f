package cost

import (
	"errors"
	"fmt"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// ErrInvalidContractTerms is returned for negative rates or amounts
var ErrInvalidContractTerms = errors.New("invalid contract terms")

// ValidateContractTerms rejects negative contract parameters. Callers run
// this before ComputeCost, which assumes valid terms.
func ValidateContractTerms(terms model.ContractTerms) error {
	if terms.ContractAmount < 0 {
		return fmt.Errorf("%w: contract amount %f", ErrInvalidContractTerms, terms.ContractAmount)
	}
	if terms.LDRatePerDay < 0 {
		return fmt.Errorf("%w: ld rate %f", ErrInvalidContractTerms, terms.LDRatePerDay)
	}
	if terms.IndirectCostPerDay < 0 {
		return fmt.Errorf("%w: indirect cost per day %f", ErrInvalidContractTerms, terms.IndirectCostPerDay)
	}
	return nil
}

// ComputeCost converts delay days into additional project cost using a linear
// accrual model: constant per-day indirect cost plus liquidated damages
// proportional to the contract amount. Non-positive delay yields an all-zero
// summary without touching the terms.
func ComputeCost(delayDays int, terms model.ContractTerms) *model.CostSummary {
	if delayDays <= 0 {
		return &model.CostSummary{}
	}

	dailyIndirect := terms.IndirectCostPerDay
	dailyLD := terms.ContractAmount * terms.LDRatePerDay

	summary := &model.CostSummary{
		DelayDays:         delayDays,
		IndirectCost:      float64(delayDays) * dailyIndirect,
		LiquidatedDamages: float64(delayDays) * dailyLD,
		Ledger:            make([]model.CostLedgerEntry, 0, delayDays),
	}
	summary.Total = summary.IndirectCost + summary.LiquidatedDamages

	cumulativeIndirect := 0.0
	cumulativeLD := 0.0
	for day := 1; day <= delayDays; day++ {
		cumulativeIndirect += dailyIndirect
		cumulativeLD += dailyLD
		summary.Ledger = append(summary.Ledger, model.CostLedgerEntry{
			Day:                day,
			DailyIndirect:      dailyIndirect,
			DailyLD:            dailyLD,
			DailyTotal:         dailyIndirect + dailyLD,
			CumulativeIndirect: cumulativeIndirect,
			CumulativeLD:       cumulativeLD,
			CumulativeTotal:    cumulativeIndirect + cumulativeLD,
		})
	}
	return summary
}
