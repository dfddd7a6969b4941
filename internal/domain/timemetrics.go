package domain

// ComputeTimeMetrics 根据事件时间戳重新计算派生时间指标
// - response_time = acknowledged_at − created_at
// - resolution_time = resolved_at − acknowledged_at
// - total_time = resolved_at − created_at
// 操作数缺失时对应指标为 nil；时钟偏移导致的负值按带符号差值保留（调用方记录异常日志，不做截断）
func ComputeTimeMetrics(inc *Incident) {
	inc.ResponseTimeSeconds = nil
	inc.ResolutionTimeSeconds = nil
	inc.TotalTimeSeconds = nil

	if inc.AcknowledgedAt != nil {
		v := inc.AcknowledgedAt.Sub(inc.CreatedAt).Seconds()
		inc.ResponseTimeSeconds = &v
	}
	if inc.ResolvedAt != nil && inc.AcknowledgedAt != nil {
		v := inc.ResolvedAt.Sub(*inc.AcknowledgedAt).Seconds()
		inc.ResolutionTimeSeconds = &v
	}
	if inc.ResolvedAt != nil {
		v := inc.ResolvedAt.Sub(inc.CreatedAt).Seconds()
		inc.TotalTimeSeconds = &v
	}
}

// HasNegativeTimeMetric 是否存在负的时间指标（时钟偏移的信号）
func HasNegativeTimeMetric(inc *Incident) bool {
	for _, v := range []*float64{inc.ResponseTimeSeconds, inc.ResolutionTimeSeconds, inc.TotalTimeSeconds} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}
