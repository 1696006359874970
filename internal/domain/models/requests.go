package models

// Requests for screener HTTP endpoints. Defined in domain for consistency and reuse.

type UniverseRequest struct {
	Universe string `query:"universe" json:"universe" validate:"required"`
}

type SyncHTTPRequest struct {
	Universe string `query:"universe" json:"universe" validate:"required"`
	AsOf     string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	Async    bool   `query:"async" json:"async"`
}

type CoverageRequest struct {
	Universe string `query:"universe" json:"universe" validate:"required"`
	AsOf     string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// Screen thresholds applied when the query omits them. A zero threshold is
// meaningful, so defaults are resolved from parameter presence, not zero values.
const (
	DefaultMinROE = 15.0
	DefaultMaxPEG = 1.2
)

type ScreenRequest struct {
	Universe string  `query:"universe" json:"universe" validate:"required"`
	AsOf     string  `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
	MinROE   float64 `query:"min_roe" json:"min_roe" validate:"gte=0,lte=100"`
	MaxPEG   float64 `query:"max_peg" json:"max_peg" validate:"gte=0,lte=10"`
}

type LookupRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,max=32"`
}
