package store

import (
	"context"

	"github.com/me/goshop/pkg/model"
)

// Store defines the persistence layer for schedule requests and results.
type Store interface {
	// Requests
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	GetRequestByHash(ctx context.Context, hash string) (*model.Request, error)

	// Schedules
	CreateSchedule(ctx context.Context, sched *model.Schedule) error
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	GetScheduleByRequest(ctx context.Context, requestID string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, opts model.ListOptions) ([]*model.Schedule, int, error)
	DeleteSchedule(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
