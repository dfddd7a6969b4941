package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// IncidentsRepository 事件仓库
// 所有状态变更都在单个事务内完成（FOR UPDATE 行锁 + 审计记录），
// 保证守卫检查、状态变更、审计写入三者原子提交
type IncidentsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIncidentsRepository 创建事件仓库
func NewIncidentsRepository(db *sql.DB, logger *zap.Logger) *IncidentsRepository {
	return &IncidentsRepository{
		db:     db,
		logger: logger,
	}
}

const incidentColumns = `
		incident_id,
		alert_id,
		patient_id,
		room,
		alert_type,
		severity,
		status,
		assigned_to,
		assigned_employee_id,
		assigned_at,
		created_at,
		acknowledged_at,
		in_progress_at,
		resolved_at,
		response_time_seconds,
		resolution_time_seconds,
		total_time_seconds,
		resolution_notes,
		resolved_by_employee_id,
		intermediate_notes`

// scanIncident 扫描单行事件记录
func scanIncident(row interface{ Scan(...interface{}) error }) (*domain.Incident, error) {
	var inc domain.Incident
	var assignedTo, assignedEmployeeID, resolutionNotes, resolvedBy sql.NullString
	var assignedAt, acknowledgedAt, inProgressAt, resolvedAt sql.NullTime
	var responseTime, resolutionTime, totalTime sql.NullFloat64
	var notes pq.StringArray

	err := row.Scan(
		&inc.IncidentID,
		&inc.AlertID,
		&inc.PatientID,
		&inc.Room,
		&inc.AlertType,
		&inc.Severity,
		&inc.Status,
		&assignedTo,
		&assignedEmployeeID,
		&assignedAt,
		&inc.CreatedAt,
		&acknowledgedAt,
		&inProgressAt,
		&resolvedAt,
		&responseTime,
		&resolutionTime,
		&totalTime,
		&resolutionNotes,
		&resolvedBy,
		&notes,
	)
	if err != nil {
		return nil, err
	}

	if assignedTo.Valid {
		inc.AssignedTo = &assignedTo.String
	}
	if assignedEmployeeID.Valid {
		inc.AssignedEmployeeID = &assignedEmployeeID.String
	}
	if assignedAt.Valid {
		inc.AssignedAt = &assignedAt.Time
	}
	if acknowledgedAt.Valid {
		inc.AcknowledgedAt = &acknowledgedAt.Time
	}
	if inProgressAt.Valid {
		inc.InProgressAt = &inProgressAt.Time
	}
	if resolvedAt.Valid {
		inc.ResolvedAt = &resolvedAt.Time
	}
	if responseTime.Valid {
		inc.ResponseTimeSeconds = &responseTime.Float64
	}
	if resolutionTime.Valid {
		inc.ResolutionTimeSeconds = &resolutionTime.Float64
	}
	if totalTime.Valid {
		inc.TotalTimeSeconds = &totalTime.Float64
	}
	if resolutionNotes.Valid {
		inc.ResolutionNotes = &resolutionNotes.String
	}
	if resolvedBy.Valid {
		inc.ResolvedByEmployeeID = &resolvedBy.String
	}
	inc.IntermediateNotes = []string(notes)

	return &inc, nil
}

// ============================================
// 创建和查询
// ============================================

// CreateIncident 创建事件并写入 CREATED 审计记录（同一事务）
func (r *IncidentsRepository) CreateIncident(ctx context.Context, inc *domain.Incident, historyNote string) error {
	if inc.IncidentID == "" {
		return fmt.Errorf("incident_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `
		INSERT INTO incidents (
			incident_id, alert_id, patient_id, room, alert_type, severity, status, created_at, intermediate_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		inc.IncidentID,
		inc.AlertID,
		inc.PatientID,
		inc.Room,
		inc.AlertType,
		inc.Severity,
		inc.Status,
		inc.CreatedAt,
		pq.Array([]string{}),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}

	historyQuery := `
		INSERT INTO incident_history (
			incident_id, employee_id, employee_name, action, previous_status, new_status, note, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, historyQuery,
		inc.IncidentID,
		nil,
		domain.SystemActorName,
		domain.ActionCreated,
		"",
		inc.Status,
		historyNote,
		inc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetIncident 根据 incident_id 获取单个事件
func (r *IncidentsRepository) GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}

	query := `SELECT` + incidentColumns + `
		FROM incidents
		WHERE incident_id = $1
	`

	inc, err := scanIncident(r.db.QueryRowContext(ctx, query, incidentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	return inc, nil
}

// ListIncidents 查询事件列表（可选状态过滤，按创建时间倒序）
func (r *IncidentsRepository) ListIncidents(ctx context.Context, status *domain.IncidentStatus) ([]*domain.Incident, error) {
	query := `SELECT` + incidentColumns + `
		FROM incidents
	`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}

	return incidents, nil
}

// GetHistory 获取事件的完整审计记录（按写入顺序）
func (r *IncidentsRepository) GetHistory(ctx context.Context, incidentID string) ([]*domain.IncidentHistoryEntry, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}

	query := `
		SELECT id, incident_id, employee_id, employee_name, action, previous_status, new_status, note, timestamp
		FROM incident_history
		WHERE incident_id = $1
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident history: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.IncidentHistoryEntry, 0)
	for rows.Next() {
		var entry domain.IncidentHistoryEntry
		var employeeID sql.NullString
		var prevStatus sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&employeeID,
			&entry.EmployeeName,
			&entry.Action,
			&prevStatus,
			&entry.NewStatus,
			&entry.Note,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident history: %w", err)
		}
		if employeeID.Valid {
			entry.EmployeeID = &employeeID.String
		}
		if prevStatus.Valid {
			entry.PreviousStatus = domain.IncidentStatus(prevStatus.String)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incident history: %w", err)
	}

	return entries, nil
}

// ============================================
// 状态变更（行锁事务）
// ============================================

// TransitionUpdate 一次状态变更要写入的字段集合
// nil 字段不更新；History 必填（审计记录与状态变更同事务提交）
type TransitionUpdate struct {
	Status               *domain.IncidentStatus
	AssignedTo           *string
	AssignedEmployeeID   *string
	AssignedAt           *time.Time
	AcknowledgedAt       *time.Time
	InProgressAt         *time.Time
	ResolvedAt           *time.Time
	ResolutionNotes      *string
	ResolvedByEmployeeID *string

	// SetTimeMetrics 为 true 时写入三项派生时间指标（值来自下面三个字段，可为 nil）
	SetTimeMetrics        bool
	ResponseTimeSeconds   *float64
	ResolutionTimeSeconds *float64
	TotalTimeSeconds      *float64

	// AppendNote 追加到 intermediate_notes（append-only）
	AppendNote *string

	History domain.IncidentHistoryEntry
}

// UpdateIncident 在行锁事务内执行一次状态变更
// 流程：SELECT ... FOR UPDATE → decide（守卫检查+计算变更）→ UPDATE + 审计 INSERT → COMMIT
// decide 返回错误（如 InvalidTransitionError）时整个事务回滚，事件保持原状
func (r *IncidentsRepository) UpdateIncident(
	ctx context.Context,
	incidentID string,
	decide func(*domain.Incident) (*TransitionUpdate, error),
) (*domain.Incident, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT` + incidentColumns + `
		FROM incidents
		WHERE incident_id = $1
		FOR UPDATE
	`
	inc, err := scanIncident(tx.QueryRowContext(ctx, query, incidentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock incident: %w", err)
	}

	upd, err := decide(inc)
	if err != nil {
		return nil, err
	}

	setClauses, args := buildSetClauses(upd)
	if len(setClauses) > 0 {
		updateQuery := fmt.Sprintf("UPDATE incidents SET %s WHERE incident_id = $%d",
			strings.Join(setClauses, ", "), len(args)+1)
		args = append(args, incidentID)
		if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
			return nil, fmt.Errorf("failed to update incident: %w", err)
		}
	}

	historyQuery := `
		INSERT INTO incident_history (
			incident_id, employee_id, employee_name, action, previous_status, new_status, note, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var employeeID interface{}
	if upd.History.EmployeeID != nil {
		employeeID = *upd.History.EmployeeID
	}
	_, err = tx.ExecContext(ctx, historyQuery,
		incidentID,
		employeeID,
		upd.History.EmployeeName,
		upd.History.Action,
		upd.History.PreviousStatus,
		upd.History.NewStatus,
		upd.History.Note,
		upd.History.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert incident history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	applyUpdate(inc, upd)
	return inc, nil
}

// buildSetClauses 根据 TransitionUpdate 构建 UPDATE SET 子句
func buildSetClauses(upd *TransitionUpdate) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.AssignedTo != nil {
		add("assigned_to", *upd.AssignedTo)
	}
	if upd.AssignedEmployeeID != nil {
		add("assigned_employee_id", *upd.AssignedEmployeeID)
	}
	if upd.AssignedAt != nil {
		add("assigned_at", *upd.AssignedAt)
	}
	if upd.AcknowledgedAt != nil {
		add("acknowledged_at", *upd.AcknowledgedAt)
	}
	if upd.InProgressAt != nil {
		add("in_progress_at", *upd.InProgressAt)
	}
	if upd.ResolvedAt != nil {
		add("resolved_at", *upd.ResolvedAt)
	}
	if upd.ResolutionNotes != nil {
		add("resolution_notes", *upd.ResolutionNotes)
	}
	if upd.ResolvedByEmployeeID != nil {
		add("resolved_by_employee_id", *upd.ResolvedByEmployeeID)
	}
	if upd.SetTimeMetrics {
		add("response_time_seconds", nullableFloat(upd.ResponseTimeSeconds))
		add("resolution_time_seconds", nullableFloat(upd.ResolutionTimeSeconds))
		add("total_time_seconds", nullableFloat(upd.TotalTimeSeconds))
	}
	if upd.AppendNote != nil {
		args = append(args, *upd.AppendNote)
		clauses = append(clauses, fmt.Sprintf(
			"intermediate_notes = array_append(COALESCE(intermediate_notes, ARRAY[]::TEXT[]), $%d)", len(args)))
	}

	return clauses, args
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// applyUpdate 把已提交的变更应用到内存中的事件（避免提交后二次查询）
func applyUpdate(inc *domain.Incident, upd *TransitionUpdate) {
	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.AssignedTo != nil {
		inc.AssignedTo = upd.AssignedTo
	}
	if upd.AssignedEmployeeID != nil {
		inc.AssignedEmployeeID = upd.AssignedEmployeeID
	}
	if upd.AssignedAt != nil {
		inc.AssignedAt = upd.AssignedAt
	}
	if upd.AcknowledgedAt != nil {
		inc.AcknowledgedAt = upd.AcknowledgedAt
	}
	if upd.InProgressAt != nil {
		inc.InProgressAt = upd.InProgressAt
	}
	if upd.ResolvedAt != nil {
		inc.ResolvedAt = upd.ResolvedAt
	}
	if upd.ResolutionNotes != nil {
		inc.ResolutionNotes = upd.ResolutionNotes
	}
	if upd.ResolvedByEmployeeID != nil {
		inc.ResolvedByEmployeeID = upd.ResolvedByEmployeeID
	}
	if upd.SetTimeMetrics {
		inc.ResponseTimeSeconds = upd.ResponseTimeSeconds
		inc.ResolutionTimeSeconds = upd.ResolutionTimeSeconds
		inc.TotalTimeSeconds = upd.TotalTimeSeconds
	}
	if upd.AppendNote != nil {
		inc.IntermediateNotes = append(inc.IntermediateNotes, *upd.AppendNote)
	}
}
