package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
	"github.com/wyfcoding/optionspricing/pkg/mq"
	"github.com/wyfcoding/optionspricing/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Relay 轮询发件箱并把待发送消息投递到消息队列
type Relay struct {
	db       *gorm.DB
	producer mq.Producer
	metrics  metrics.Collector
	cfg      config.OutboxConfig
	backoff  utils.Backoff
}

// NewRelay 创建中继
func NewRelay(gdb *gorm.DB, producer mq.Producer, collector metrics.Collector, cfg config.OutboxConfig) *Relay {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.IntervalMs <= 0 {
		cfg.IntervalMs = 500
	}
	return &Relay{
		db:       gdb,
		producer: producer,
		metrics:  collector,
		cfg:      cfg,
		backoff:  utils.Backoff{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second},
	}
}

// Run 阻塞运行直到 ctx 取消
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval())
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	logger.Info(ctx, "outbox relay started", "topic", r.cfg.Topic, "interval", r.cfg.Interval())
	for {
		select {
		case <-ctx.Done():
			logger.Info(context.Background(), "outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "outbox relay batch failed", "error", err)
			}
		case <-cleanup.C:
			if r.cfg.RetentionDays > 0 {
				before := time.Now().AddDate(0, 0, -r.cfg.RetentionDays)
				if _, err := r.Cleanup(ctx, before); err != nil {
					logger.Warn(ctx, "outbox cleanup failed", "error", err)
				}
			}
		}
	}
}

// ProcessBatch 投递一批待发送消息，返回成功条数。
// 行锁使用 SKIP LOCKED，多个实例可同时运行。
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msgs []OutboxMessage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", StatusPending).
			Order("created_at asc").
			Limit(r.cfg.BatchSize).
			Find(&msgs).Error; err != nil {
			return err
		}

		for i := range msgs {
			msg := &msgs[i]
			err := r.send(ctx, msg)
			updates := map[string]any{"updated_at": time.Now()}
			if err == nil {
				updates["status"] = StatusSent
				sent++
			} else {
				msg.Attempts++
				updates["attempts"] = msg.Attempts
				updates["last_error"] = truncate(err.Error(), 512)
				if r.cfg.MaxRetries > 0 && msg.Attempts >= r.cfg.MaxRetries {
					updates["status"] = StatusFailed
					r.metrics.RecordOutbox(StatusFailed, 1)
					logger.Error(ctx, "outbox message abandoned", "id", msg.ID, "event_type", msg.EventType, "error", err)
				}
			}
			if err := tx.Model(&OutboxMessage{}).Where("id = ?", msg.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if sent > 0 {
		r.metrics.RecordOutbox(StatusSent, sent)
	}
	return sent, err
}

func (r *Relay) send(ctx context.Context, msg *OutboxMessage) error {
	value, err := msg.envelope()
	if err != nil {
		return err
	}
	out := mq.Message{
		Key:     msg.AggregateID,
		Value:   value,
		Headers: map[string]string{"event_type": msg.EventType, "event_id": msg.ID},
	}
	return utils.RetryWithBackoff(ctx, r.backoff, func(ctx context.Context) error {
		return r.producer.Send(ctx, r.cfg.Topic, out)
	})
}

// Cleanup 删除早于 before 的已发送消息
func (r *Relay) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusSent, before).
		Delete(&OutboxMessage{})
	return tx.RowsAffected, tx.Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
