package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "goshop API",
		Version:     "v1",
		Description: "Job-shop scheduling: submit jobs, get minimum-makespan machine schedules",
		Endpoints: []endpointInfo{
			{"/api/v1/schedules", []string{"GET", "POST"}, "Solve a schedule request (cached by content hash) or list stored schedules"},
			{"/api/v1/schedules/{id}", []string{"GET", "DELETE"}, "Single schedule with its result rows. GET accepts ?anchor=RFC3339"},
			{"/api/v1/schedules/{id}/rows", []string{"GET"}, "Export result rows, ?format=csv|json"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
