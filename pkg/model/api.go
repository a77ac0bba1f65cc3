package model

import "time"

// Response is the standard API response envelope.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination holds pagination metadata for list endpoints.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ListOptions configures list queries with pagination and filtering.
type ListOptions struct {
	Limit  int
	Offset int
	Status string // Optional solve status filter
}

// DefaultListOptions returns sensible defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 20, Offset: 0}
}

// Clamp enforces limits (max 100, min 1).
func (o *ListOptions) Clamp() {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}

// SolveRequest is the body of POST /api/v1/schedules/.
type SolveRequest struct {
	Name      string     `json:"name"`
	Jobs      []Job      `json:"jobs"`
	Anchor    *time.Time `json:"anchor,omitempty"`
	TimeLimit string     `json:"time_limit,omitempty"` // Go duration, e.g. "30s"
	NodeLimit int64      `json:"node_limit,omitempty"`
}

// ScheduleSummary is the list representation of a stored schedule.
type ScheduleSummary struct {
	ID        string      `json:"id"`
	RequestID string      `json:"request_id"`
	Name      string      `json:"name"`
	Status    SolveStatus `json:"status"`
	Makespan  int64       `json:"makespan"`
	RowCount  int         `json:"row_count"`
	CreatedAt time.Time   `json:"created_at"`
}

// Summary returns the list representation of s.
func (s *Schedule) Summary() ScheduleSummary {
	return ScheduleSummary{
		ID:        s.ID,
		RequestID: s.RequestID,
		Name:      s.Name,
		Status:    s.Status,
		Makespan:  s.Makespan,
		RowCount:  len(s.Rows),
		CreatedAt: s.CreatedAt,
	}
}
