package internal

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/internal/model"
)

const DefaultDispatchInterval = 30 * time.Second

// Dispatcher publishes announcements once their scheduled start has passed.
type Dispatcher struct {
	repo        IRepository
	broadcaster IBroadcaster
	logger      *zap.SugaredLogger
	interval    time.Duration

	Now   func() time.Time
	NewID func() string
}

func NewDispatcher(repo IRepository, broadcaster IBroadcaster, logger *zap.SugaredLogger, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	return &Dispatcher{
		repo:        repo,
		broadcaster: broadcaster,
		logger:      logger,
		interval:    interval,
		Now:         time.Now,
		NewID:       uuid.NewString,
	}
}

// Run blocks until ctx is cancelled. The interval is a fixed pause after
// each cycle, not a fixed rate.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Infof("announcement dispatcher started, interval %s", d.interval)
	defer d.logger.Info("announcement dispatcher stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := d.safeCycle(ctx); err != nil {
			dispatcherCycleFailures.Inc()
			d.logger.Errorf("announcement dispatch error: %s", err.Error())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.interval):
		}
	}
}

func (d *Dispatcher) safeCycle(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dispatcher panic: %v", r)
		}
	}()
	return d.RunCycle(ctx)
}

// RunCycle flags every due announcement as published and then broadcasts
// it. A failed store write broadcasts nothing, so a later cycle retries.
func (d *Dispatcher) RunCycle(ctx context.Context) (int, error) {
	now := d.Now().UTC()

	due, err := d.repo.PublishDueAnnouncements(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "publish due announcements")
	}

	for _, a := range due {
		n := model.Notification{
			Type:        model.NotificationAnnouncement,
			Content:     a.Body,
			ID:          d.NewID(),
			Timestamp:   now,
			Title:       a.Title,
			Description: a.Body,
		}
		if err := d.broadcaster.Broadcast(ctx, n); err != nil {
			notificationFailures.WithLabelValues("broadcast").Inc()
			d.logger.Warnf("announcement %d broadcast error: %s", a.ID, err.Error())
		}
	}

	if len(due) > 0 {
		announcementsPublished.Add(float64(len(due)))
		d.logger.Infof("published %d announcement(s)", len(due))
	}
	return len(due), nil
}
