package http

// APIResponse is the envelope of every JSON response. Status mirrors the
// HTTP status code.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"universe"`
	Message string                 `json:"message,omitempty" example:"universe is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse carries the rows of a screen and how many matched.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

// AcceptedResponseData is returned when work was queued instead of run inline.
type AcceptedResponseData struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}
