package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

// IncidentOperations 事件服务接口
type IncidentOperations interface {
	CreateFromAlert(ctx context.Context, alert domain.AlertMessage) (*domain.Incident, error)
	Claim(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error)
	Acknowledge(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error)
	Start(ctx context.Context, incidentID, employeeID, employeeName string) (*domain.Incident, error)
	AddNote(ctx context.Context, incidentID, employeeID, employeeName, note string) (*domain.Incident, error)
	Resolve(ctx context.Context, incidentID, employeeID, employeeName, notes string) (*domain.Incident, error)
	Get(ctx context.Context, incidentID string) (*domain.Incident, error)
	List(ctx context.Context, status *domain.IncidentStatus) ([]*domain.Incident, error)
	History(ctx context.Context, incidentID string) ([]*domain.IncidentHistoryEntry, error)
	Metrics(ctx context.Context) (*domain.AggregateMetrics, error)
}

// IncidentHandler 事件管理 Handler
type IncidentHandler struct {
	service IncidentOperations
	logger  *zap.Logger
}

// NewIncidentHandler 创建事件 Handler
func NewIncidentHandler(service IncidentOperations, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{
		service: service,
		logger:  logger,
	}
}

const maxBodyBytes = 1 << 20 // 1MB

// ============================================
// 路由分发
// ============================================

// Health 健康检查
func (h *IncidentHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "incident-service"})
}

// Incidents 处理 /incidents（列表查询和手工创建）
func (h *IncidentHandler) Incidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListIncidents(w, r)
	case http.MethodPost:
		h.CreateIncident(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ServeIncidentSubroutes 处理 /incidents/ 下的子路由
func (h *IncidentHandler) ServeIncidentSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/incidents/")
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// 固定子路径优先于 {id} 匹配
	switch rest {
	case "export":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportIncidents(w, r)
		return
	case "metrics":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.AggregateMetrics(w, r)
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	incidentID := parts[0]
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetIncident(w, r, incidentID)
		return
	}

	action := parts[1]
	if action == "history" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetHistory(w, r, incidentID)
		return
	}

	// 状态变更接受 PATCH（也兼容 POST）；备注只接受 POST
	switch action {
	case "claim", "acknowledge", "start", "resolve":
		if r.Method != http.MethodPatch && r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	case "notes":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch action {
	case "claim":
		h.Claim(w, r, incidentID)
	case "acknowledge":
		h.Acknowledge(w, r, incidentID)
	case "start":
		h.Start(w, r, incidentID)
	case "notes":
		h.AddNote(w, r, incidentID)
	case "resolve":
		h.Resolve(w, r, incidentID)
	}
}

// ============================================
// 查询
// ============================================

// ListIncidents 查询事件列表（?status= 过滤）
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	var status *domain.IncidentStatus
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		v := domain.IncidentStatus(strings.ToUpper(s))
		switch v {
		case domain.StatusOpen, domain.StatusAssigned, domain.StatusAcknowledged,
			domain.StatusInProgress, domain.StatusResolved:
			status = &v
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid status %q", s)})
			return
		}
	}

	incidents, err := h.service.List(r.Context(), status)
	if err != nil {
		h.logger.Error("Failed to list incidents", zap.Error(err))
		writeError(w, err)
		return
	}
	if incidents == nil {
		incidents = []*domain.Incident{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

type incidentWithHistory struct {
	*domain.Incident
	History []*domain.IncidentHistoryEntry `json:"history"`
}

// GetIncident 查询单个事件（含完整审计记录）
func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request, incidentID string) {
	inc, err := h.service.Get(r.Context(), incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if history == nil {
		history = []*domain.IncidentHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, incidentWithHistory{Incident: inc, History: history})
}

// GetHistory 查询事件审计记录
func (h *IncidentHandler) GetHistory(w http.ResponseWriter, r *http.Request, incidentID string) {
	entries, err := h.service.History(r.Context(), incidentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.IncidentHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incident_id": incidentID,
		"history":     entries,
	})
}

// AggregateMetrics 聚合指标
func (h *IncidentHandler) AggregateMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Metrics(r.Context())
	if err != nil {
		h.logger.Error("Failed to compute aggregate metrics", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ExportIncidents 导出事件列表为 Excel
func (h *IncidentHandler) ExportIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.service.List(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	excelData, err := GenerateIncidentExport(incidents)
	if err != nil {
		h.logger.Error("Failed to generate incident export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate export"})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=incidents-export.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(excelData)
}

// ============================================
// 创建
// ============================================

type createIncidentRequest struct {
	AlertID   string `json:"alert_id"`
	PatientID string `json:"patient_id"`
	Room      string `json:"room"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
}

// CreateIncident 手工创建事件（绕过报警队列，如护士站电话上报）
func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	// 手工上报可以没有报警 ID，补一个人工来源标识
	if req.AlertID == "" {
		req.AlertID = "MANUAL-" + uuid.NewString()[:8]
	}

	inc, err := h.service.CreateFromAlert(r.Context(), domain.AlertMessage{
		AlertID:   req.AlertID,
		PatientID: req.PatientID,
		Room:      req.Room,
		AlertType: req.AlertType,
		Severity:  req.Severity,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

// ============================================
// 生命周期操作
// ============================================

type actorRequest struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
}

type noteRequest struct {
	actorRequest
	Note string `json:"note"`
}

type resolveRequest struct {
	actorRequest
	ResolutionNotes string `json:"resolution_notes"`
}

// Claim 认领事件
func (h *IncidentHandler) Claim(w http.ResponseWriter, r *http.Request, incidentID string) {
	var req actorRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	inc, err := h.service.Claim(r.Context(), incidentID, req.EmployeeID, req.EmployeeName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// Acknowledge 确认事件
func (h *IncidentHandler) Acknowledge(w http.ResponseWriter, r *http.Request, incidentID string) {
	var req actorRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	inc, err := h.service.Acknowledge(r.Context(), incidentID, req.EmployeeID, req.EmployeeName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// Start 开始处理
func (h *IncidentHandler) Start(w http.ResponseWriter, r *http.Request, incidentID string) {
	var req actorRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	inc, err := h.service.Start(r.Context(), incidentID, req.EmployeeID, req.EmployeeName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// AddNote 追加过程备注
func (h *IncidentHandler) AddNote(w http.ResponseWriter, r *http.Request, incidentID string) {
	var req noteRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	inc, err := h.service.AddNote(r.Context(), incidentID, req.EmployeeID, req.EmployeeName, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

// Resolve 解决事件
func (h *IncidentHandler) Resolve(w http.ResponseWriter, r *http.Request, incidentID string) {
	var req resolveRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	inc, err := h.service.Resolve(r.Context(), incidentID, req.EmployeeID, req.EmployeeName, req.ResolutionNotes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}
