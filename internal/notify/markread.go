package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// MarkReadClient 通知已读回调客户端
// best-effort：失败由调用方记日志后吞掉，不阻塞事件状态变更
type MarkReadClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewMarkReadClient 创建已读回调客户端
func NewMarkReadClient(baseURL string, timeout time.Duration, logger *zap.Logger) *MarkReadClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &MarkReadClient{
		httpClient: client,
		logger:     logger,
	}
}

// MarkIncidentRead 把某事件/员工的通知标记为已读
func (c *MarkReadClient) MarkIncidentRead(ctx context.Context, incidentID, employeeID string) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"employee_id": employeeID}).
		Patch(fmt.Sprintf("/notifications/incident/%s/mark-read", incidentID))

	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode())
	}

	return nil
}
