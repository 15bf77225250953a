// Package messaging 领域事件的发件箱写入与中继投递
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/optionspricing/pkg/db"
	"gorm.io/gorm"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// OutboxMessage 发件箱消息
type OutboxMessage struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	EventType   string    `gorm:"type:varchar(100);index"`
	AggregateID string    `gorm:"column:aggregate_id;type:varchar(64)"`
	Payload     string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(20);index:idx_status_created,priority:1;default:'pending'"`
	Attempts    int       `gorm:"default:0"`
	LastError   string    `gorm:"type:varchar(512)"`
	CreatedAt   time.Time `gorm:"index:idx_status_created,priority:2"`
	UpdatedAt   time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "pricing_outbox_messages"
}

// Envelope 投递到消息队列的事件信封
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// OutboxEventPublisher 实现 domain.EventPublisher，使用 Outbox 模式
type OutboxEventPublisher struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(gdb *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: gdb, now: time.Now}
}

// Publish 写入发件箱；ctx 中有事务时与业务数据同事务提交
func (p *OutboxEventPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	msg, err := newOutboxMessage(eventType, key, event, p.now())
	if err != nil {
		return err
	}
	if err := db.Conn(ctx, p.db).Create(msg).Error; err != nil {
		return fmt.Errorf("write outbox message %s: %w", eventType, err)
	}
	return nil
}

func newOutboxMessage(eventType, key string, event any, now time.Time) (*OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &OutboxMessage{
		ID:          uuid.NewString(),
		EventType:   eventType,
		AggregateID: key,
		Payload:     string(payload),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// envelope 组装投递信封
func (m *OutboxMessage) envelope() ([]byte, error) {
	return json.Marshal(Envelope{
		EventID:    m.ID,
		EventType:  m.EventType,
		Key:        m.AggregateID,
		Payload:    json.RawMessage(m.Payload),
		OccurredAt: m.CreatedAt,
	})
}
