package model

// ContractTerms holds the contract parameters used to price delay days
type ContractTerms struct {
	ContractAmount     float64 `json:"contract_amount"`
	LDRatePerDay       float64 `json:"ld_rate"`
	IndirectCostPerDay float64 `json:"indirect_cost_per_day"`
}

// CostLedgerEntry is one row of the day-indexed cumulative cost ledger
type CostLedgerEntry struct {
	Day                int     `json:"day"`
	DailyIndirect      float64 `json:"daily_indirect"`
	DailyLD            float64 `json:"daily_ld"`
	DailyTotal         float64 `json:"daily_total"`
	CumulativeIndirect float64 `json:"cumulative_indirect"`
	CumulativeLD       float64 `json:"cumulative_ld"`
	CumulativeTotal    float64 `json:"cumulative_total"`
}

// CostSummary is the additional cost incurred by a number of delay days
type CostSummary struct {
	DelayDays         int               `json:"delay_days"`
	IndirectCost      float64           `json:"indirect_cost"`
	LiquidatedDamages float64           `json:"ld"`
	Total             float64           `json:"total"`
	Ledger            []CostLedgerEntry `json:"ledger,omitempty"`
}
