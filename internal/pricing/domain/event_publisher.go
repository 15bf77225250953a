package domain

import "context"

// EventPublisher 事件发布者接口。
// ctx 中存在数据库事务时，事件与业务数据在同一事务内写入发件箱。
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, key string, event any) error
}
