package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound 事件不存在
var ErrNotFound = errors.New("incident not found")

// ErrDependencyUnavailable 依赖（数据库/值班服务/队列）不可用
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// ErrAssignmentExhausted 按角色优先级和兜底查询都找不到可指派的员工
// 这是正常结果而不是异常：事件保持 OPEN，等待人工指派或 claim
var ErrAssignmentExhausted = errors.New("no available staff for assignment")

// InvalidTransitionError 状态机不允许的操作
type InvalidTransitionError struct {
	Operation string
	Current   IncidentStatus
	Required  []IncidentStatus
}

func (e *InvalidTransitionError) Error() string {
	required := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		required = append(required, string(s))
	}
	return fmt.Sprintf("cannot %s incident with status %s (requires %s)",
		e.Operation, e.Current, strings.Join(required, " or "))
}

// ValidationError 请求参数校验失败
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
