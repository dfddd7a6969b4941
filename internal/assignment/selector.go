package assignment

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

// WorkloadQuery 员工工作量查询
type WorkloadQuery interface {
	Workload(ctx context.Context, employeeID string) (domain.WorkloadSnapshot, error)
}

// 工作量查询失败时的哨兵值：让查询失败的候选人排在所有正常候选人之后
const workloadSentinel = 999

// PickLeastBusy 从候选人中选出最空闲的员工
// 最小化 (in_progress_count, active_count) 元组；并列时取先出现的（稳定选择）
// 单个候选人的工作量查询失败不会中断选择，按哨兵值处理
func PickLeastBusy(ctx context.Context, query WorkloadQuery, candidates []domain.StaffMember, logger *zap.Logger) (domain.StaffMember, domain.WorkloadSnapshot) {
	best := candidates[0]
	bestLoad := lookupWorkload(ctx, query, candidates[0], logger)

	for _, staff := range candidates[1:] {
		load := lookupWorkload(ctx, query, staff, logger)
		if load.InProgressCount < bestLoad.InProgressCount ||
			(load.InProgressCount == bestLoad.InProgressCount && load.ActiveCount < bestLoad.ActiveCount) {
			best = staff
			bestLoad = load
		}
	}

	logger.Debug("Selected least busy staff",
		zap.String("employee_id", best.EmployeeID),
		zap.String("name", best.Name),
		zap.Int("in_progress", bestLoad.InProgressCount),
		zap.Int("active", bestLoad.ActiveCount),
	)

	return best, bestLoad
}

func lookupWorkload(ctx context.Context, query WorkloadQuery, staff domain.StaffMember, logger *zap.Logger) domain.WorkloadSnapshot {
	load, err := query.Workload(ctx, staff.EmployeeID)
	if err != nil {
		logger.Warn("Workload query failed, treating candidate as maximally loaded",
			zap.String("employee_id", staff.EmployeeID),
			zap.Error(err),
		)
		return domain.WorkloadSnapshot{
			ActiveCount:     workloadSentinel,
			InProgressCount: workloadSentinel,
		}
	}
	return load
}
