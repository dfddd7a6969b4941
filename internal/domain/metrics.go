package domain

// AverageTimes 已解决事件的平均时间指标
type AverageTimes struct {
	ResponseTimeSeconds   float64 `json:"response_time_seconds"`
	ResponseTimeMinutes   float64 `json:"response_time_minutes"`
	ResolutionTimeSeconds float64 `json:"resolution_time_seconds"`
	ResolutionTimeMinutes float64 `json:"resolution_time_minutes"`
	TotalTimeSeconds      float64 `json:"total_time_seconds"`
	TotalTimeMinutes      float64 `json:"total_time_minutes"`
}

// EmployeePerformance 单个员工的事件处理统计（按 resolved_by 聚合）
type EmployeePerformance struct {
	EmployeeID           string  `json:"employee_id"`
	Name                 string  `json:"name"`
	IncidentsHandled     int     `json:"incidents_handled"`
	AvgResponseSeconds   float64 `json:"avg_response_seconds"`
	AvgResolutionSeconds float64 `json:"avg_resolution_seconds"`
}

// AggregateMetrics 聚合指标（/incidents/metrics 响应）
type AggregateMetrics struct {
	AverageTimes        AverageTimes          `json:"average_times"`
	SeverityCounts      map[string]int        `json:"severity_counts"`
	StatusCounts        map[string]int        `json:"status_counts"`
	EmployeePerformance []EmployeePerformance `json:"employee_performance"`
}
