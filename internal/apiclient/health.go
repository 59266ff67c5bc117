package apiclient

import "context"

// HealthPath is the backend liveness route.
const HealthPath = "/api/health"

// BackendHealth is the body of a successful health response.
type BackendHealth struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// CheckBackendHealth calls the backend health endpoint through c.
func CheckBackendHealth(ctx context.Context, c *Client) (BackendHealth, error) {
	return Get[BackendHealth](ctx, c, HealthPath)
}
