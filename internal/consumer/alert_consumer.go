package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
	"github.com/MrMsnawi/healthguard-ops/pkg/streams"
)

// IncidentCreator 报警消息的落地方
type IncidentCreator interface {
	CreateFromAlert(ctx context.Context, alert domain.AlertMessage) (*domain.Incident, error)
}

// Options 消费循环参数
type Options struct {
	Stream        string
	Group         string
	Consumer      string
	Block         time.Duration // 单次阻塞读取时长
	RetryAttempts int           // 消费者组创建的重试预算
	RetryDelay    time.Duration
	RestartDelay  time.Duration // 读取连续失败后重启循环前的休眠
}

// AlertConsumer 报警消息消费者（Redis Streams 消费者组）
// 每次只预取一条消息；无论处理成败都 XACK，失败的消息不重新投递
type AlertConsumer struct {
	client  *redis.Client
	creator IncidentCreator
	opts    Options
	logger  *zap.Logger
}

// NewAlertConsumer 创建报警消费者
func NewAlertConsumer(client *redis.Client, creator IncidentCreator, opts Options, logger *zap.Logger) *AlertConsumer {
	return &AlertConsumer{
		client:  client,
		creator: creator,
		opts:    opts,
		logger:  logger,
	}
}

// Run 启动消费循环，直到 ctx 取消
// 传输层故障（组创建或读取失败）都不会终止循环：
// 按重试预算重试后休眠 RestartDelay，然后重启整个 connect-consume 周期
func (c *AlertConsumer) Run(ctx context.Context) error {
	for {
		if err := c.ensureGroup(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Failed to create consumer group, restarting cycle",
				zap.String("stream", c.opts.Stream),
				zap.String("group", c.opts.Group),
				zap.Duration("restart_delay", c.opts.RestartDelay),
				zap.Error(err))
			if !c.sleepRestart(ctx) {
				return ctx.Err()
			}
			continue
		}

		if err := c.consumeLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("Consume loop failed, restarting",
				zap.String("stream", c.opts.Stream),
				zap.Duration("restart_delay", c.opts.RestartDelay),
				zap.Error(err))
			if !c.sleepRestart(ctx) {
				return ctx.Err()
			}
			continue
		}
		return nil
	}
}

// sleepRestart 重启前休眠；ctx 取消时返回 false
func (c *AlertConsumer) sleepRestart(ctx context.Context) bool {
	select {
	case <-time.After(c.opts.RestartDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

// ensureGroup 按重试预算创建消费者组
func (c *AlertConsumer) ensureGroup(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		if err := streams.CreateConsumerGroup(ctx, c.client, c.opts.Stream, c.opts.Group); err != nil {
			lastErr = err
			c.logger.Warn("Failed to create consumer group, retrying",
				zap.String("stream", c.opts.Stream),
				zap.String("group", c.opts.Group),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.opts.RetryAttempts),
				zap.Error(err))
			select {
			case <-time.After(c.opts.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to create consumer group after %d attempts: %w", c.opts.RetryAttempts, lastErr)
}

// consumeLoop 阻塞读取并逐条处理，连续读取失败时返回错误交给 Run 重启
func (c *AlertConsumer) consumeLoop(ctx context.Context) error {
	c.logger.Info("Alert consumer started",
		zap.String("stream", c.opts.Stream),
		zap.String("group", c.opts.Group),
		zap.String("consumer", c.opts.Consumer))

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Count=1：一次只取一条，处理完再取下一条
		messages, err := streams.ReadFromStream(ctx, c.client,
			c.opts.Stream, c.opts.Group, c.opts.Consumer, 1, c.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		for _, msg := range messages {
			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage 处理单条消息：解析 → 创建事件 → XACK
// 解析失败和处理失败都只记日志并 ACK：坏消息不值得阻塞队列
func (c *AlertConsumer) handleMessage(ctx context.Context, msg streams.StreamMessage) {
	defer func() {
		if err := streams.AckMessage(ctx, c.client, c.opts.Stream, c.opts.Group, msg.ID); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}()

	alert, err := parseAlertMessage(msg)
	if err != nil {
		c.logger.Error("Failed to parse alert message, discarding",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return
	}

	inc, err := c.creator.CreateFromAlert(ctx, alert)
	if err != nil {
		c.logger.Error("Failed to create incident from alert, discarding",
			zap.String("message_id", msg.ID),
			zap.String("alert_id", alert.AlertID),
			zap.Error(err))
		return
	}

	c.logger.Info("Alert processed",
		zap.String("message_id", msg.ID),
		zap.String("alert_id", alert.AlertID),
		zap.String("incident_id", inc.IncidentID))
}

// parseAlertMessage 从消息体解析报警：支持 {"data": <json>} 封装和整条 JSON 两种格式
func parseAlertMessage(msg streams.StreamMessage) (domain.AlertMessage, error) {
	var alert domain.AlertMessage

	raw, ok := msg.Values["data"]
	if !ok {
		return alert, fmt.Errorf("message %s has no data field", msg.ID)
	}
	data, ok := raw.(string)
	if !ok {
		return alert, fmt.Errorf("message %s data field is not a string", msg.ID)
	}
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return alert, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return alert, nil
}
