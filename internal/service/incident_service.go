package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/assignment"
	"github.com/MrMsnawi/healthguard-ops/internal/domain"
	"github.com/MrMsnawi/healthguard-ops/internal/metrics"
	"github.com/MrMsnawi/healthguard-ops/internal/repository"
)

// ============================================
// 依赖接口
// ============================================

// IncidentStore 事件持久层
type IncidentStore interface {
	CreateIncident(ctx context.Context, inc *domain.Incident, historyNote string) error
	GetIncident(ctx context.Context, incidentID string) (*domain.Incident, error)
	ListIncidents(ctx context.Context, status *domain.IncidentStatus) ([]*domain.Incident, error)
	GetHistory(ctx context.Context, incidentID string) ([]*domain.IncidentHistoryEntry, error)
	UpdateIncident(ctx context.Context, incidentID string, decide func(*domain.Incident) (*repository.TransitionUpdate, error)) (*domain.Incident, error)
	AggregateMetrics(ctx context.Context) (*domain.AggregateMetrics, error)
}

// Assigner 自动指派引擎
type Assigner interface {
	Decide(ctx context.Context, alertType string) (*assignment.Decision, error)
}

// NotificationPublisher 通知发布
type NotificationPublisher interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}

// ReadMarker 通知已读回写
type ReadMarker interface {
	MarkIncidentRead(ctx context.Context, incidentID, employeeID string) error
}

// ============================================
// 事件服务
// ============================================

// IncidentService 事件生命周期管理
type IncidentService struct {
	store    IncidentStore
	assigner Assigner
	notifier NotificationPublisher
	reader   ReadMarker
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewIncidentService 创建事件服务
func NewIncidentService(
	store IncidentStore,
	assigner Assigner,
	notifier NotificationPublisher,
	reader ReadMarker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IncidentService {
	return &IncidentService{
		store:    store,
		assigner: assigner,
		notifier: notifier,
		reader:   reader,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// newIncidentID 生成事件 ID：INC-<毫秒时间戳>-<uuid 前 8 位>
func (s *IncidentService) newIncidentID() string {
	return fmt.Sprintf("INC-%d-%s", s.now().UnixMilli(), uuid.NewString()[:8])
}

// ============================================
// 创建与自动指派
// ============================================

// CreateFromAlert 由报警消息创建事件并尝试自动指派
// 指派失败（无可用员工）不是错误：事件保持 OPEN 等待 claim
func (s *IncidentService) CreateFromAlert(ctx context.Context, alert domain.AlertMessage) (*domain.Incident, error) {
	if err := validateAlert(alert); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inc := &domain.Incident{
		IncidentID: s.newIncidentID(),
		AlertID:    alert.AlertID,
		PatientID:  alert.PatientID,
		Room:       alert.Room,
		AlertType:  alert.AlertType,
		Severity:   alert.Severity,
		Status:     domain.StatusOpen,
		CreatedAt:  now,
	}

	historyNote := fmt.Sprintf("Incident created from alert %s (%s, severity %s)",
		alert.AlertID, alert.AlertType, alert.Severity)
	if err := s.store.CreateIncident(ctx, inc, historyNote); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}
	s.metrics.ObserveCreated(inc.Severity)
	s.logger.Info("Incident created",
		zap.String("incident_id", inc.IncidentID),
		zap.String("alert_id", inc.AlertID),
		zap.String("alert_type", inc.AlertType),
		zap.String("severity", inc.Severity))

	s.autoAssign(ctx, inc)
	return inc, nil
}

func validateAlert(alert domain.AlertMessage) error {
	if alert.AlertID == "" {
		return domain.NewValidationError("alert_id is required")
	}
	if alert.PatientID == "" {
		return domain.NewValidationError("patient_id is required")
	}
	if alert.AlertType == "" {
		return domain.NewValidationError("alert_type is required")
	}
	if alert.Severity == "" {
		return domain.NewValidationError("severity is required")
	}
	return nil
}

// autoAssign 自动指派：决策 → 状态变更（同事务审计）→ 通知
// 任何一步失败都只记日志，事件保持已提交的状态
func (s *IncidentService) autoAssign(ctx context.Context, inc *domain.Incident) {
	decision, err := s.assigner.Decide(ctx, inc.AlertType)
	if err != nil {
		if err == domain.ErrAssignmentExhausted {
			s.logger.Warn("No staff available for auto-assignment, incident stays OPEN",
				zap.String("incident_id", inc.IncidentID),
				zap.String("alert_type", inc.AlertType))
		} else {
			s.logger.Error("Auto-assignment failed",
				zap.String("incident_id", inc.IncidentID),
				zap.Error(err))
		}
		return
	}

	now := s.now().UTC()
	updated, err := s.store.UpdateIncident(ctx, inc.IncidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		// 在行锁内重新检查：期间被 claim 的事件不再覆盖
		if current.Status != domain.StatusOpen {
			return nil, fmt.Errorf("incident no longer OPEN: %s", current.Status)
		}
		status := domain.StatusAssigned
		note := fmt.Sprintf("Auto-assigned to %s (%s, role %s, workload %d active / %d in progress)",
			decision.Staff.Name, decision.Staff.EmployeeID, decision.Role,
			decision.Workload.ActiveCount, decision.Workload.InProgressCount)
		if decision.FromFallback {
			note += " via fallback"
		}
		return &repository.TransitionUpdate{
			Status:             &status,
			AssignedTo:         &decision.Staff.Name,
			AssignedEmployeeID: &decision.Staff.EmployeeID,
			AssignedAt:         &now,
			History: domain.IncidentHistoryEntry{
				EmployeeName:   domain.SystemActorName,
				Action:         domain.ActionAssigned,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           note,
				Timestamp:      now,
			},
		}, nil
	})
	if err != nil {
		s.logger.Error("Failed to commit auto-assignment",
			zap.String("incident_id", inc.IncidentID),
			zap.Error(err))
		return
	}
	*inc = *updated

	s.logger.Info("Incident auto-assigned",
		zap.String("incident_id", inc.IncidentID),
		zap.String("employee_id", decision.Staff.EmployeeID),
		zap.String("role", decision.Role),
		zap.Bool("from_fallback", decision.FromFallback),
		zap.Int("in_progress_count", decision.Workload.InProgressCount),
		zap.Int("active_count", decision.Workload.ActiveCount))

	s.notifyAssigned(ctx, inc, decision.Staff, domain.NotificationIncidentAssigned)
}

// notifyAssigned 发布指派/改派通知（尽力而为）
func (s *IncidentService) notifyAssigned(ctx context.Context, inc *domain.Incident, staff domain.StaffMember, notifType string) {
	req := domain.NotificationRequest{
		Type:         notifType,
		EmployeeID:   staff.EmployeeID,
		EmployeeName: staff.Name,
		IncidentID:   inc.IncidentID,
		Title:        "New Incident Assigned",
		Message: fmt.Sprintf("Incident %s: %s for patient %s in room %s",
			inc.IncidentID, inc.AlertType, inc.PatientID, inc.Room),
		Data: map[string]string{
			"incident_id": inc.IncidentID,
			"alert_type":  inc.AlertType,
			"severity":    inc.Severity,
			"room":        inc.Room,
			"patient_id":  inc.PatientID,
		},
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}
	if notifType == domain.NotificationIncidentReassigned {
		req.Title = "Incident Reassigned"
		req.Message = fmt.Sprintf("Incident %s has been claimed by another staff member", inc.IncidentID)
	}
	if err := s.notifier.Publish(ctx, req); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("incident_id", inc.IncidentID),
			zap.String("type", notifType),
			zap.Error(err))
	}
}

// ============================================
// 生命周期操作
// ============================================

// Claim 员工认领事件：OPEN/ASSIGNED/ACKNOWLEDGED → ACKNOWLEDGED
// 认领会覆盖现有归属；原归属人（若不同）收到改派通知
func (s *IncidentService) Claim(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error) {
	if employeeID == "" {
		return nil, domain.NewValidationError("employee_id is required")
	}

	var previousAssignee *domain.StaffMember
	now := s.now().UTC()
	inc, err := s.store.UpdateIncident(ctx, incidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		switch current.Status {
		case domain.StatusOpen, domain.StatusAssigned, domain.StatusAcknowledged:
		default:
			return nil, &domain.InvalidTransitionError{
				Operation: "claim",
				Current:   current.Status,
				Required:  []domain.IncidentStatus{domain.StatusOpen, domain.StatusAssigned, domain.StatusAcknowledged},
			}
		}

		if current.AssignedEmployeeID != nil && *current.AssignedEmployeeID != employeeID {
			name := ""
			if current.AssignedTo != nil {
				name = *current.AssignedTo
			}
			previousAssignee = &domain.StaffMember{EmployeeID: *current.AssignedEmployeeID, Name: name}
		}

		status := domain.StatusAcknowledged
		upd := &repository.TransitionUpdate{
			Status:             &status,
			AssignedTo:         &employeeName,
			AssignedEmployeeID: &employeeID,
			AssignedAt:         &now,
			History: domain.IncidentHistoryEntry{
				EmployeeID:     &employeeID,
				EmployeeName:   employeeName,
				Action:         domain.ActionClaimed,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           fmt.Sprintf("Claimed by %s", employeeName),
				Timestamp:      now,
			},
		}
		// acknowledged_at 只在首次写入；同时计算响应耗时
		if current.AcknowledgedAt == nil {
			upd.AcknowledgedAt = &now
			projected := *current
			projected.AcknowledgedAt = &now
			domain.ComputeTimeMetrics(&projected)
			upd.SetTimeMetrics = true
			upd.ResponseTimeSeconds = projected.ResponseTimeSeconds
			upd.ResolutionTimeSeconds = projected.ResolutionTimeSeconds
			upd.TotalTimeSeconds = projected.TotalTimeSeconds
		}
		return upd, nil
	})
	if err != nil {
		return nil, err
	}

	if inc.ResponseTimeSeconds != nil && inc.AcknowledgedAt != nil && inc.AcknowledgedAt.Equal(now) {
		s.metrics.ObserveMTTA(*inc.ResponseTimeSeconds)
	}
	s.logger.Info("Incident claimed",
		zap.String("incident_id", incidentID),
		zap.String("employee_id", employeeID))

	if previousAssignee != nil {
		s.notifyAssigned(ctx, inc, *previousAssignee, domain.NotificationIncidentReassigned)
	}
	return inc, nil
}

// Acknowledge 确认事件：ASSIGNED/OPEN → ACKNOWLEDGED
func (s *IncidentService) Acknowledge(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error) {
	if employeeID == "" {
		return nil, domain.NewValidationError("employee_id is required")
	}

	now := s.now().UTC()
	var firstAck bool
	inc, err := s.store.UpdateIncident(ctx, incidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		switch current.Status {
		case domain.StatusOpen, domain.StatusAssigned:
		default:
			return nil, &domain.InvalidTransitionError{
				Operation: "acknowledge",
				Current:   current.Status,
				Required:  []domain.IncidentStatus{domain.StatusOpen, domain.StatusAssigned},
			}
		}

		status := domain.StatusAcknowledged
		upd := &repository.TransitionUpdate{
			Status: &status,
			History: domain.IncidentHistoryEntry{
				EmployeeID:     &employeeID,
				EmployeeName:   employeeName,
				Action:         domain.ActionAcknowledged,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           fmt.Sprintf("Acknowledged by %s", employeeName),
				Timestamp:      now,
			},
		}
		if current.AcknowledgedAt == nil {
			firstAck = true
			upd.AcknowledgedAt = &now
			projected := *current
			projected.AcknowledgedAt = &now
			domain.ComputeTimeMetrics(&projected)
			upd.SetTimeMetrics = true
			upd.ResponseTimeSeconds = projected.ResponseTimeSeconds
			upd.ResolutionTimeSeconds = projected.ResolutionTimeSeconds
			upd.TotalTimeSeconds = projected.TotalTimeSeconds
		}
		return upd, nil
	})
	if err != nil {
		return nil, err
	}

	if firstAck && inc.ResponseTimeSeconds != nil {
		s.metrics.ObserveMTTA(*inc.ResponseTimeSeconds)
	}
	s.logger.Info("Incident acknowledged",
		zap.String("incident_id", incidentID),
		zap.String("employee_id", employeeID))

	s.markRead(ctx, incidentID, employeeID)
	return inc, nil
}

// Start 开始处理：ACKNOWLEDGED → IN_PROGRESS
func (s *IncidentService) Start(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error) {
	if employeeID == "" {
		return nil, domain.NewValidationError("employee_id is required")
	}

	now := s.now().UTC()
	inc, err := s.store.UpdateIncident(ctx, incidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		if current.Status != domain.StatusAcknowledged {
			return nil, &domain.InvalidTransitionError{
				Operation: "start progress on",
				Current:   current.Status,
				Required:  []domain.IncidentStatus{domain.StatusAcknowledged},
			}
		}

		status := domain.StatusInProgress
		return &repository.TransitionUpdate{
			Status:       &status,
			InProgressAt: &now,
			History: domain.IncidentHistoryEntry{
				EmployeeID:     &employeeID,
				EmployeeName:   employeeName,
				Action:         domain.ActionStartedProgress,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           fmt.Sprintf("Work started by %s", employeeName),
				Timestamp:      now,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Incident work started",
		zap.String("incident_id", incidentID),
		zap.String("employee_id", employeeID))
	return inc, nil
}

// AddNote 追加过程备注（任意状态可用，含 RESOLVED）
func (s *IncidentService) AddNote(ctx context.Context, incidentID, employeeID, employeeName, note string) (*domain.Incident, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.NewValidationError("note must not be empty")
	}
	if employeeID == "" {
		return nil, domain.NewValidationError("employee_id is required")
	}

	now := s.now().UTC()
	stamped := fmt.Sprintf("[%s] %s", now.Format("15:04:05"), note)
	inc, err := s.store.UpdateIncident(ctx, incidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		return &repository.TransitionUpdate{
			AppendNote: &stamped,
			History: domain.IncidentHistoryEntry{
				EmployeeID:     &employeeID,
				EmployeeName:   employeeName,
				Action:         domain.ActionNoteAdded,
				PreviousStatus: current.Status,
				NewStatus:      current.Status,
				Note:           note,
				Timestamp:      now,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Note added to incident",
		zap.String("incident_id", incidentID),
		zap.String("employee_id", employeeID))
	return inc, nil
}

// resolutionNotesMinLength 解决说明的最小长度（去首尾空白后）
const resolutionNotesMinLength = 10

// Resolve 解决事件：除 RESOLVED 外任意状态可解决
func (s *IncidentService) Resolve(ctx context.Context, incidentID, employeeID, employeeName, notes string) (*domain.Incident, error) {
	if employeeID == "" {
		return nil, domain.NewValidationError("employee_id is required")
	}
	notes = strings.TrimSpace(notes)
	if len(notes) < resolutionNotesMinLength {
		return nil, domain.NewValidationError("resolution notes must be at least %d characters", resolutionNotesMinLength)
	}

	now := s.now().UTC()
	inc, err := s.store.UpdateIncident(ctx, incidentID, func(current *domain.Incident) (*repository.TransitionUpdate, error) {
		if current.Status == domain.StatusResolved {
			return nil, &domain.InvalidTransitionError{
				Operation: "resolve",
				Current:   current.Status,
				Required: []domain.IncidentStatus{
					domain.StatusOpen, domain.StatusAssigned,
					domain.StatusAcknowledged, domain.StatusInProgress,
				},
			}
		}

		status := domain.StatusResolved
		projected := *current
		projected.ResolvedAt = &now
		domain.ComputeTimeMetrics(&projected)
		return &repository.TransitionUpdate{
			Status:                &status,
			ResolvedAt:            &now,
			ResolutionNotes:       &notes,
			ResolvedByEmployeeID:  &employeeID,
			SetTimeMetrics:        true,
			ResponseTimeSeconds:   projected.ResponseTimeSeconds,
			ResolutionTimeSeconds: projected.ResolutionTimeSeconds,
			TotalTimeSeconds:      projected.TotalTimeSeconds,
			History: domain.IncidentHistoryEntry{
				EmployeeID:     &employeeID,
				EmployeeName:   employeeName,
				Action:         domain.ActionResolved,
				PreviousStatus: current.Status,
				NewStatus:      status,
				Note:           notes,
				Timestamp:      now,
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// MTTR 统计 resolved−created：未经确认直接解决的事件也计入
	if inc.TotalTimeSeconds != nil {
		s.metrics.ObserveMTTR(*inc.TotalTimeSeconds)
	}
	if domain.HasNegativeTimeMetric(inc) {
		s.logger.Warn("Negative time metric detected, possible clock skew",
			zap.String("incident_id", incidentID))
	}
	s.logger.Info("Incident resolved",
		zap.String("incident_id", incidentID),
		zap.String("employee_id", employeeID))
	return inc, nil
}

// markRead 通知已读回写（尽力而为）
func (s *IncidentService) markRead(ctx context.Context, incidentID, employeeID string) {
	if err := s.reader.MarkIncidentRead(ctx, incidentID, employeeID); err != nil {
		s.logger.Warn("Failed to mark incident notifications as read",
			zap.String("incident_id", incidentID),
			zap.String("employee_id", employeeID),
			zap.Error(err))
	}
}

// ============================================
// 查询
// ============================================

// Get 查询单个事件
func (s *IncidentService) Get(ctx context.Context, incidentID string) (*domain.Incident, error) {
	return s.store.GetIncident(ctx, incidentID)
}

// List 按状态过滤查询事件列表（status 为 nil 返回全部）
func (s *IncidentService) List(ctx context.Context, status *domain.IncidentStatus) ([]*domain.Incident, error) {
	return s.store.ListIncidents(ctx, status)
}

// History 查询事件审计记录（时间升序）
func (s *IncidentService) History(ctx context.Context, incidentID string) ([]*domain.IncidentHistoryEntry, error) {
	// 先确认事件存在，区分 404 与空历史
	if _, err := s.store.GetIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.store.GetHistory(ctx, incidentID)
}

// Metrics 聚合指标
func (s *IncidentService) Metrics(ctx context.Context) (*domain.AggregateMetrics, error) {
	return s.store.AggregateMetrics(ctx)
}
