package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/router-for-me/BizCardCloud/internal/store"
	log "github.com/sirupsen/logrus"
)

const defaultExpirySchedule = "@every 1h"

// ExpirySweeper periodically marks lapsed subscriptions inactive.
type ExpirySweeper struct {
	store    store.Storage
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// NewExpirySweeper constructs a sweeper. schedule accepts standard cron
// expressions and descriptors such as "@every 1h".
func NewExpirySweeper(s store.Storage, schedule string) *ExpirySweeper {
	if s == nil {
		return nil
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultExpirySchedule
	}
	return &ExpirySweeper{store: s, schedule: schedule, now: time.Now}
}

// Start runs one sweep immediately and then on schedule until ctx is done.
func (e *ExpirySweeper) Start(ctx context.Context) error {
	if e == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := cron.New()
	if _, err := c.AddFunc(e.schedule, func() {
		if _, errSweep := e.SweepOnce(ctx); errSweep != nil {
			log.WithError(errSweep).Warn("expiry sweeper: sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("expiry sweeper: invalid schedule %q: %w", e.schedule, err)
	}
	e.cron = c

	if _, err := e.SweepOnce(ctx); err != nil {
		log.WithError(err).Warn("expiry sweeper: initial sweep failed")
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	log.Infof("expiry sweeper started (schedule=%s)", e.schedule)
	return nil
}

// SweepOnce expires every active subscription whose end has passed.
func (e *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	if e == nil || e.store == nil {
		return 0, fmt.Errorf("expiry sweeper: nil store")
	}
	clock := e.now
	if clock == nil {
		clock = time.Now
	}
	expired, err := e.store.ExpireSubscriptions(ctx, clock().UTC())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		log.WithField("count", expired).Info("expiry sweeper: subscriptions expired")
	}
	return expired, nil
}
