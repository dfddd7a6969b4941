package notify

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
	"github.com/MrMsnawi/healthguard-ops/pkg/streams"
)

// Publisher 通知请求发布者
// 只负责把通知请求投递到 notifications 队列，推送/落库由通知服务完成
type Publisher struct {
	redisClient *redis.Client
	stream      string
	logger      *zap.Logger
}

// NewPublisher 创建通知发布者
func NewPublisher(redisClient *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// Publish 发布通知请求
func (p *Publisher) Publish(ctx context.Context, req domain.NotificationRequest) error {
	id, err := streams.PublishJSONToStream(ctx, p.redisClient, p.stream, req)
	if err != nil {
		p.logger.Error("Failed to publish notification",
			zap.String("type", req.Type),
			zap.String("employee_id", req.EmployeeID),
			zap.String("incident_id", req.IncidentID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.logger.Info("Notification published",
		zap.String("type", req.Type),
		zap.String("employee_id", req.EmployeeID),
		zap.String("incident_id", req.IncidentID),
		zap.String("message_id", id),
	)
	return nil
}
