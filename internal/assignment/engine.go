package assignment

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
	"github.com/MrMsnawi/healthguard-ops/internal/roles"
)

// PresenceClient 值班在线状态查询（on-call 服务）
type PresenceClient interface {
	CurrentOnCall(ctx context.Context, role string) ([]domain.StaffMember, error)
	AllSchedules(ctx context.Context) ([]domain.StaffMember, error)
}

// Decision 指派决策结果
type Decision struct {
	Staff        domain.StaffMember
	Role         string // 命中的角色（兜底时为员工自己的角色）
	Workload     domain.WorkloadSnapshot
	FromFallback bool // 是否通过兜底查询（任意角色）命中
}

// Engine 自动指派引擎
// 贪心策略：按角色优先级遍历，第一个有在线候选人的角色即命中，不再比较后续角色；
// 全部角色落空后兜底查询任意在线员工；兜底也落空则返回 ErrAssignmentExhausted
type Engine struct {
	presence PresenceClient
	workload WorkloadQuery
	logger   *zap.Logger
}

// NewEngine 创建指派引擎
func NewEngine(presence PresenceClient, workload WorkloadQuery, logger *zap.Logger) *Engine {
	return &Engine{
		presence: presence,
		workload: workload,
		logger:   logger,
	}
}

// Decide 为指定报警类型选出指派对象
// 单个角色的查询失败按"该角色无候选人"处理，继续尝试下一角色
func (e *Engine) Decide(ctx context.Context, alertType string) (*Decision, error) {
	rolePriorities := roles.Priorities(alertType)

	// Step 1: 按角色优先级查询在线员工，第一个非空角色命中
	for _, role := range rolePriorities {
		candidates, err := e.presence.CurrentOnCall(ctx, role)
		if err != nil {
			e.logger.Warn("Presence query failed for role, trying next",
				zap.String("role", role),
				zap.String("alert_type", alertType),
				zap.Error(err),
			)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		staff, load := PickLeastBusy(ctx, e.workload, candidates, e.logger)
		return &Decision{
			Staff:    staff,
			Role:     role,
			Workload: load,
		}, nil
	}

	// Step 2: 兜底——任意角色的在线员工
	e.logger.Info("No specific role match, trying any logged-in employee",
		zap.String("alert_type", alertType),
		zap.Strings("tried_roles", rolePriorities),
	)

	all, err := e.presence.AllSchedules(ctx)
	if err != nil {
		e.logger.Warn("Fallback schedules query failed",
			zap.String("alert_type", alertType),
			zap.Error(err),
		)
		return nil, domain.ErrAssignmentExhausted
	}

	loggedIn := make([]domain.StaffMember, 0)
	for _, staff := range all {
		if staff.IsLoggedIn {
			loggedIn = append(loggedIn, staff)
		}
	}
	if len(loggedIn) == 0 {
		return nil, domain.ErrAssignmentExhausted
	}

	staff, load := PickLeastBusy(ctx, e.workload, loggedIn, e.logger)
	role := staff.Role
	if role == "" {
		role = "UNKNOWN"
	}
	return &Decision{
		Staff:        staff,
		Role:         role,
		Workload:     load,
		FromFallback: true,
	}, nil
}
