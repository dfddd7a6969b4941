package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

// ============================================
// 工作量查询和聚合指标
// ============================================

// Workload 查询员工当前工作量（指派决策用，临时计算不落库）
func (r *IncidentsRepository) Workload(ctx context.Context, employeeID string) (domain.WorkloadSnapshot, error) {
	if employeeID == "" {
		return domain.WorkloadSnapshot{}, fmt.Errorf("employee_id is required")
	}

	query := `
		SELECT
			COUNT(*) FILTER (WHERE status != 'RESOLVED') AS active_count,
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS') AS in_progress_count
		FROM incidents
		WHERE assigned_employee_id = $1
	`

	var snapshot domain.WorkloadSnapshot
	err := r.db.QueryRowContext(ctx, query, employeeID).Scan(
		&snapshot.ActiveCount,
		&snapshot.InProgressCount,
	)
	if err != nil {
		return domain.WorkloadSnapshot{}, fmt.Errorf("failed to get workload: %w", err)
	}

	return snapshot, nil
}

// AggregateMetrics 聚合指标：平均时间、按严重度/状态计数、员工绩效
func (r *IncidentsRepository) AggregateMetrics(ctx context.Context) (*domain.AggregateMetrics, error) {
	metrics := &domain.AggregateMetrics{
		SeverityCounts:      make(map[string]int),
		StatusCounts:        make(map[string]int),
		EmployeePerformance: make([]domain.EmployeePerformance, 0),
	}

	// 平均时间（只统计已解决事件）
	timesQuery := `
		SELECT
			AVG(response_time_seconds),
			AVG(resolution_time_seconds),
			AVG(total_time_seconds)
		FROM incidents
		WHERE status = 'RESOLVED'
	`
	var avgResponse, avgResolution, avgTotal sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, timesQuery).Scan(&avgResponse, &avgResolution, &avgTotal); err != nil {
		return nil, fmt.Errorf("failed to get average times: %w", err)
	}
	if avgResponse.Valid {
		metrics.AverageTimes.ResponseTimeSeconds = avgResponse.Float64
		metrics.AverageTimes.ResponseTimeMinutes = avgResponse.Float64 / 60
	}
	if avgResolution.Valid {
		metrics.AverageTimes.ResolutionTimeSeconds = avgResolution.Float64
		metrics.AverageTimes.ResolutionTimeMinutes = avgResolution.Float64 / 60
	}
	if avgTotal.Valid {
		metrics.AverageTimes.TotalTimeSeconds = avgTotal.Float64
		metrics.AverageTimes.TotalTimeMinutes = avgTotal.Float64 / 60
	}

	// 按严重度计数
	severityQuery := `SELECT severity, COUNT(*) FROM incidents GROUP BY severity`
	rows, err := r.db.QueryContext(ctx, severityQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get severity counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		metrics.SeverityCounts[severity] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate severity counts: %w", err)
	}

	// 按状态计数
	statusQuery := `SELECT status, COUNT(*) FROM incidents GROUP BY status`
	statusRows, err := r.db.QueryContext(ctx, statusQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		metrics.StatusCounts[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	// 员工绩效（按 resolved_by 聚合；名字取事件上记录的指派名）
	perfQuery := `
		SELECT
			resolved_by_employee_id,
			COALESCE(MAX(assigned_to), '') AS name,
			COUNT(*) AS incidents_handled,
			COALESCE(AVG(response_time_seconds), 0) AS avg_response_seconds,
			COALESCE(AVG(resolution_time_seconds), 0) AS avg_resolution_seconds
		FROM incidents
		WHERE status = 'RESOLVED' AND resolved_by_employee_id IS NOT NULL
		GROUP BY resolved_by_employee_id
		ORDER BY avg_response_seconds ASC
	`
	perfRows, err := r.db.QueryContext(ctx, perfQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee performance: %w", err)
	}
	defer perfRows.Close()
	for perfRows.Next() {
		var perf domain.EmployeePerformance
		if err := perfRows.Scan(
			&perf.EmployeeID,
			&perf.Name,
			&perf.IncidentsHandled,
			&perf.AvgResponseSeconds,
			&perf.AvgResolutionSeconds,
		); err != nil {
			return nil, fmt.Errorf("failed to scan employee performance: %w", err)
		}
		metrics.EmployeePerformance = append(metrics.EmployeePerformance, perf)
	}
	if err := perfRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employee performance: %w", err)
	}

	return metrics, nil
}
