package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

func setupMockIncidentsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *IncidentsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewIncidentsRepository(db, logger)

	return db, mock, repo
}

var incidentTestColumns = []string{
	"incident_id", "alert_id", "patient_id", "room", "alert_type", "severity",
	"status", "assigned_to", "assigned_employee_id", "assigned_at",
	"created_at", "acknowledged_at", "in_progress_at", "resolved_at",
	"response_time_seconds", "resolution_time_seconds", "total_time_seconds",
	"resolution_notes", "resolved_by_employee_id", "intermediate_notes",
}

func incidentRow(incidentID string, status domain.IncidentStatus, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(incidentTestColumns).AddRow(
		incidentID, "ALR-1", "PAT-1", "ICU-3", "CARDIAC_ARREST", "CRITICAL",
		string(status), nil, nil, nil,
		createdAt, nil, nil, nil,
		nil, nil, nil,
		nil, nil, "{}",
	)
}

// ============================================
// 创建和查询测试
// ============================================

func TestCreateIncident_Success(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	inc := &domain.Incident{
		IncidentID: "INC-1700000000000",
		AlertID:    "ALR-1",
		PatientID:  "PAT-1",
		Room:       "ICU-3",
		AlertType:  "CARDIAC_ARREST",
		Severity:   "CRITICAL",
		Status:     domain.StatusOpen,
		CreatedAt:  now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO incidents`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO incident_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateIncident(ctx, inc, "Created from alert ALR-1")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIncident_HistoryInsertFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	inc := &domain.Incident{
		IncidentID: "INC-1",
		AlertID:    "ALR-1",
		PatientID:  "PAT-1",
		Status:     domain.StatusOpen,
		CreatedAt:  time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO incidents`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO incident_history`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateIncident(ctx, inc, "note")

	// 审计写入失败时整个创建必须失败，不允许只写一半
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "incident history")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIncident_Success(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	createdAt := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-1").
		WillReturnRows(incidentRow("INC-1", domain.StatusOpen, createdAt))

	inc, err := repo.GetIncident(ctx, "INC-1")

	require.NoError(t, err)
	assert.Equal(t, "INC-1", inc.IncidentID)
	assert.Equal(t, domain.StatusOpen, inc.Status)
	assert.Equal(t, "CARDIAC_ARREST", inc.AlertType)
	assert.Nil(t, inc.AssignedTo)
	assert.Empty(t, inc.IntermediateNotes)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIncident_NotFound(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-missing").
		WillReturnError(sql.ErrNoRows)

	inc, err := repo.GetIncident(ctx, "INC-missing")

	assert.Nil(t, inc)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncidents_StatusFilter(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	createdAt := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs("OPEN").
		WillReturnRows(incidentRow("INC-1", domain.StatusOpen, createdAt))

	status := domain.StatusOpen
	incidents, err := repo.ListIncidents(ctx, &status)

	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, domain.StatusOpen, incidents[0].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistory_Order(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	employeeID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "incident_id", "employee_id", "employee_name", "action",
		"previous_status", "new_status", "note", "timestamp",
	}).
		AddRow(1, "INC-1", nil, "SYSTEM", domain.ActionCreated, nil, "OPEN", "Created from alert ALR-1", now).
		AddRow(2, "INC-1", employeeID, "Dr. Chen", domain.ActionAcknowledged, "ASSIGNED", "ACKNOWLEDGED", "Employee acknowledged the incident", now.Add(time.Minute))

	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-1").
		WillReturnRows(rows)

	entries, err := repo.GetHistory(ctx, "INC-1")

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionCreated, entries[0].Action)
	assert.Nil(t, entries[0].EmployeeID)
	assert.Equal(t, domain.ActionAcknowledged, entries[1].Action)
	require.NotNil(t, entries[1].EmployeeID)
	assert.Equal(t, employeeID, *entries[1].EmployeeID)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 状态变更事务测试
// ============================================

func TestUpdateIncident_CommitsStatusAndHistory(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	createdAt := time.Now().Add(-time.Minute)
	ackedAt := time.Now()
	employeeID := uuid.New().String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-1").
		WillReturnRows(incidentRow("INC-1", domain.StatusAssigned, createdAt))
	mock.ExpectExec(`UPDATE incidents SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO incident_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	inc, err := repo.UpdateIncident(ctx, "INC-1", func(current *domain.Incident) (*TransitionUpdate, error) {
		require.Equal(t, domain.StatusAssigned, current.Status)
		status := domain.StatusAcknowledged
		response := ackedAt.Sub(current.CreatedAt).Seconds()
		return &TransitionUpdate{
			Status:              &status,
			AcknowledgedAt:      &ackedAt,
			SetTimeMetrics:      true,
			ResponseTimeSeconds: &response,
			History: domain.IncidentHistoryEntry{
				IncidentID:     "INC-1",
				EmployeeID:     &employeeID,
				EmployeeName:   "Dr. Chen",
				Action:         domain.ActionAcknowledged,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           "Employee acknowledged the incident",
				Timestamp:      ackedAt,
			},
		}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusAcknowledged, inc.Status)
	require.NotNil(t, inc.AcknowledgedAt)
	require.NotNil(t, inc.ResponseTimeSeconds)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIncident_GuardRejectionRollsBack(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-1").
		WillReturnRows(incidentRow("INC-1", domain.StatusResolved, time.Now()))
	mock.ExpectRollback()

	inc, err := repo.UpdateIncident(ctx, "INC-1", func(current *domain.Incident) (*TransitionUpdate, error) {
		return nil, &domain.InvalidTransitionError{
			Operation: "resolve",
			Current:   current.Status,
			Required:  []domain.IncidentStatus{domain.StatusOpen, domain.StatusAssigned, domain.StatusAcknowledged, domain.StatusInProgress},
		}
	})

	assert.Nil(t, inc)
	var transitionErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, domain.StatusResolved, transitionErr.Current)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIncident_NotFound(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	inc, err := repo.UpdateIncident(ctx, "INC-missing", func(current *domain.Incident) (*TransitionUpdate, error) {
		t.Fatal("decide should not be called for missing incident")
		return nil, nil
	})

	assert.Nil(t, inc)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIncident_AppendNoteKeepsStatus(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	employeeID := uuid.New().String()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT`).
		WithArgs("INC-1").
		WillReturnRows(incidentRow("INC-1", domain.StatusInProgress, now.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE incidents SET intermediate_notes = array_append`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO incident_history`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	note := "[10:30:00] Vitals stabilizing"
	inc, err := repo.UpdateIncident(ctx, "INC-1", func(current *domain.Incident) (*TransitionUpdate, error) {
		return &TransitionUpdate{
			AppendNote: &note,
			History: domain.IncidentHistoryEntry{
				IncidentID:     "INC-1",
				EmployeeID:     &employeeID,
				EmployeeName:   "Nurse Park",
				Action:         domain.ActionNoteAdded,
				PreviousStatus: current.Status,
				NewStatus:      current.Status,
				Note:           "Vitals stabilizing",
				Timestamp:      now,
			},
		}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, inc.Status)
	assert.Equal(t, []string{note}, inc.IntermediateNotes)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 工作量和聚合指标测试
// ============================================

func TestWorkload_Success(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	employeeID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(employeeID).
		WillReturnRows(sqlmock.NewRows([]string{"active_count", "in_progress_count"}).AddRow(5, 2))

	snapshot, err := repo.Workload(ctx, employeeID)

	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.ActiveCount)
	assert.Equal(t, 2, snapshot.InProgressCount)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkload_EmptyEmployeeID(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	_, err := repo.Workload(context.Background(), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "employee_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateMetrics_Success(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()
	employeeID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"avg_response", "avg_resolution", "avg_total"}).
			AddRow(45.0, 600.0, 645.0))
	mock.ExpectQuery(`SELECT severity`).
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).
			AddRow("CRITICAL", 3).
			AddRow("MEDIUM", 7))
	mock.ExpectQuery(`SELECT status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("OPEN", 2).
			AddRow("RESOLVED", 8))
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{
			"resolved_by_employee_id", "name", "incidents_handled", "avg_response_seconds", "avg_resolution_seconds",
		}).AddRow(employeeID, "Dr. Chen", 8, 45.0, 600.0))

	metrics, err := repo.AggregateMetrics(ctx)

	require.NoError(t, err)
	assert.Equal(t, 45.0, metrics.AverageTimes.ResponseTimeSeconds)
	assert.Equal(t, 0.75, metrics.AverageTimes.ResponseTimeMinutes)
	assert.Equal(t, 3, metrics.SeverityCounts["CRITICAL"])
	assert.Equal(t, 8, metrics.StatusCounts["RESOLVED"])
	require.Len(t, metrics.EmployeePerformance, 1)
	assert.Equal(t, "Dr. Chen", metrics.EmployeePerformance[0].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateMetrics_NoResolvedIncidents(t *testing.T) {
	db, mock, repo := setupMockIncidentsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"avg_response", "avg_resolution", "avg_total"}).
			AddRow(nil, nil, nil))
	mock.ExpectQuery(`SELECT severity`).
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}))
	mock.ExpectQuery(`SELECT status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}))
	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{
			"resolved_by_employee_id", "name", "incidents_handled", "avg_response_seconds", "avg_resolution_seconds",
		}))

	metrics, err := repo.AggregateMetrics(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0.0, metrics.AverageTimes.ResponseTimeSeconds)
	assert.Empty(t, metrics.SeverityCounts)
	assert.Empty(t, metrics.EmployeePerformance)

	require.NoError(t, mock.ExpectationsWereMet())
}
