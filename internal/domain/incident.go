package domain

import (
	"time"
)

// IncidentStatus 事件状态
type IncidentStatus string

// 事件状态机：OPEN → ASSIGNED → ACKNOWLEDGED → IN_PROGRESS → RESOLVED
// RESOLVED 为终态；claim 可以把 OPEN/ASSIGNED/ACKNOWLEDGED 的事件改归属（回到 ACKNOWLEDGED）
const (
	StatusOpen         IncidentStatus = "OPEN"
	StatusAssigned     IncidentStatus = "ASSIGNED"
	StatusAcknowledged IncidentStatus = "ACKNOWLEDGED"
	StatusInProgress   IncidentStatus = "IN_PROGRESS"
	StatusResolved     IncidentStatus = "RESOLVED"
)

// 审计动作标签（incident_history.action）
const (
	ActionCreated         = "CREATED"
	ActionAssigned        = "ASSIGNED"
	ActionClaimed         = "CLAIMED"
	ActionAcknowledged    = "ACKNOWLEDGED"
	ActionStartedProgress = "STARTED_PROGRESS"
	ActionNoteAdded       = "NOTE_ADDED"
	ActionResolved        = "INCIDENT_RESOLVED"
)

// SystemActorName 系统动作的审计署名（employee_id 为空）
const SystemActorName = "SYSTEM"

// Incident 事件领域模型（对应 incidents 表）
type Incident struct {
	// 主键
	IncidentID string `db:"incident_id" json:"incident_id"`

	// 来源信息（创建时写入，之后不可变）
	AlertID   string `db:"alert_id" json:"alert_id"`
	PatientID string `db:"patient_id" json:"patient_id"`
	Room      string `db:"room" json:"room"`
	AlertType string `db:"alert_type" json:"alert_type"`
	Severity  string `db:"severity" json:"severity"`

	// 状态
	Status IncidentStatus `db:"status" json:"status"`

	// 指派信息（auto-assign 或 claim 时覆盖写入）
	AssignedTo         *string    `db:"assigned_to" json:"assigned_to"`
	AssignedEmployeeID *string    `db:"assigned_employee_id" json:"assigned_employee_id"`
	AssignedAt         *time.Time `db:"assigned_at" json:"assigned_at"`

	// 时间戳（每个只在首次进入对应状态时写入一次）
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at"`
	InProgressAt   *time.Time `db:"in_progress_at" json:"in_progress_at"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at"`

	// 派生时间指标（acknowledge/resolve 成功后重新计算）
	ResponseTimeSeconds   *float64 `db:"response_time_seconds" json:"response_time_seconds"`
	ResolutionTimeSeconds *float64 `db:"resolution_time_seconds" json:"resolution_time_seconds"`
	TotalTimeSeconds      *float64 `db:"total_time_seconds" json:"total_time_seconds"`

	// 解决信息（仅 resolve 时写入）
	ResolutionNotes      *string `db:"resolution_notes" json:"resolution_notes"`
	ResolvedByEmployeeID *string `db:"resolved_by_employee_id" json:"resolved_by_employee_id"`

	// 过程备注（append-only，格式 "[HH:MM:SS] text"）
	IntermediateNotes []string `db:"intermediate_notes" json:"intermediate_notes"`
}

// IncidentHistoryEntry 事件审计记录（append-only，对应 incident_history 表）
type IncidentHistoryEntry struct {
	ID             int64          `db:"id" json:"id"`
	IncidentID     string         `db:"incident_id" json:"incident_id"`
	EmployeeID     *string        `db:"employee_id" json:"employee_id"` // 系统动作为 NULL
	EmployeeName   string         `db:"employee_name" json:"employee_name"`
	Action         string         `db:"action" json:"action"`
	PreviousStatus IncidentStatus `db:"previous_status" json:"previous_status"`
	NewStatus      IncidentStatus `db:"new_status" json:"new_status"`
	Note           string         `db:"note" json:"note"`
	Timestamp      time.Time      `db:"timestamp" json:"timestamp"`
}

// AlertMessage 报警消息（来自 alerts 队列）
type AlertMessage struct {
	AlertID   string `json:"alert_id"`
	PatientID string `json:"patient_id"`
	Room      string `json:"room"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	CreatedAt string `json:"created_at"`
}

// StaffMember 值班员工（来自 on-call 服务）
type StaffMember struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// WorkloadSnapshot 员工当前工作量快照（指派决策时临时计算，不落库）
type WorkloadSnapshot struct {
	ActiveCount     int // 未解决事件数（status != RESOLVED）
	InProgressCount int // 处理中事件数（status = IN_PROGRESS）
}

// NotificationRequest 通知请求（发布到 notifications 队列）
type NotificationRequest struct {
	Type         string            `json:"type"`
	EmployeeID   string            `json:"employee_id"`
	EmployeeName string            `json:"employee_name"`
	IncidentID   string            `json:"incident_id"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Data         map[string]string `json:"data,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

// 通知类型
const (
	NotificationIncidentAssigned   = "INCIDENT_ASSIGNED"
	NotificationIncidentReassigned = "INCIDENT_REASSIGNED"
)
