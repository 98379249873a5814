package api

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// StatsResponse represents the dashboard statistics payload
type StatsResponse struct {
	TotalQueries   uint64   `json:"total_queries"`
	BlockedQueries uint64   `json:"blocked_queries"`
	BlocklistSize  int      `json:"blocklist_size"`
	Allowlist      []string `json:"allowlist"`
	Denylist       []string `json:"denylist"`
}

// LogsResponse represents the recent-query log, newest first
type LogsResponse struct {
	Logs []string `json:"logs"`
}

// ListUpdateRequest represents a wholesale allowlist/denylist replacement
type ListUpdateRequest struct {
	Domains []string `json:"domains"`
}

// ListUpdateResponse represents the result of a list replacement
type ListUpdateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BlocklistRefreshResponse represents an on-demand blocklist fetch result
type BlocklistRefreshResponse struct {
	Status  string `json:"status"`
	Domains int    `json:"domains"`
}

// SystemResponse represents process and host resource usage
type SystemResponse struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsageBytes   uint64  `json:"memory_usage_bytes"`
	MemoryTotalBytes   uint64  `json:"memory_total_bytes"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
