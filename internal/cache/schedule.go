// Package cache provides a read-through LRU in front of the schedule store.
// Schedules are read on every slot listing and every booking attempt but
// change rarely, so a small cache keyed by owner removes most of the reads.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"booking-service/internal/model"
)

// ScheduleSource is the read side of the schedule store.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error)
}

type ScheduleCache struct {
	src ScheduleSource
	lru *lru.Cache[string, model.Schedule]
}

func NewScheduleCache(src ScheduleSource, size int) (*ScheduleCache, error) {
	c, err := lru.New[string, model.Schedule](size)
	if err != nil {
		return nil, err
	}
	return &ScheduleCache{src: src, lru: c}, nil
}

// GetSchedule serves from cache, falling back to the source. Misses and
// source errors are never cached.
func (c *ScheduleCache) GetSchedule(ctx context.Context, ownerID string) (model.Schedule, error) {
	if sched, ok := c.lru.Get(ownerID); ok {
		return sched, nil
	}
	sched, err := c.src.GetSchedule(ctx, ownerID)
	if err != nil {
		return model.Schedule{}, err
	}
	c.lru.Add(ownerID, sched)
	return sched, nil
}

// Invalidate drops the owner's cached schedule. Called after every save.
func (c *ScheduleCache) Invalidate(ownerID string) {
	c.lru.Remove(ownerID)
}
