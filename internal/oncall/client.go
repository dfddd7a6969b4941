package oncall

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

// Client 值班（on-call）服务客户端
// 在线状态每次指派都重新查询，不做本地缓存（不保证不陈旧，最终以值班服务为准）
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient 创建值班服务客户端
// timeout 限定单次查询耗时：超时按"该来源无候选人"处理，不会拖垮整个指派流程
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

// CurrentOnCall 查询指定角色当前在线的值班员工
// 值班服务对"无人在线"返回 404，统一转为空列表（调用方继续尝试下一角色）
func (c *Client) CurrentOnCall(ctx context.Context, role string) ([]domain.StaffMember, error) {
	if role == "" {
		return nil, fmt.Errorf("role is required")
	}

	var staff []domain.StaffMember
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("role", role).
		SetResult(&staff).
		Get("/oncall/current")

	if err != nil {
		c.logger.Warn("On-call current query failed",
			zap.String("role", role),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to query on-call staff: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		// 该角色当前无人在线
		return []domain.StaffMember{}, nil
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("on-call service returned status %d", resp.StatusCode())
	}

	return staff, nil
}

// AllSchedules 查询全部员工及其登录状态（指派兜底用）
func (c *Client) AllSchedules(ctx context.Context) ([]domain.StaffMember, error) {
	var staff []domain.StaffMember
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&staff).
		Get("/oncall/schedules")

	if err != nil {
		c.logger.Warn("On-call schedules query failed",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to query on-call schedules: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("on-call service returned status %d", resp.StatusCode())
	}

	return staff, nil
}
