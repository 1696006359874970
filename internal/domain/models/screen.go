package models

// ScreenRow is a projected record enriched with the constituent name.
type ScreenRow struct {
	MetricRecord
	Name string `json:"nom,omitempty"`
}

// ScreenResult is the response of a threshold screen over one universe and day.
type ScreenResult struct {
	Universe string      `json:"universe"`
	AsOf     string      `json:"as_of"`
	MinROE   float64     `json:"min_roe"`
	MaxPEG   float64     `json:"max_peg"`
	Rows     []ScreenRow `json:"rows"`
}
