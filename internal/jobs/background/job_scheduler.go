package background

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"maclink/internal/config"
	"maclink/internal/services"
)

const (
	JobSubscriptionExpiry = "subscription-expiry"
	JobAnalyticsRefresh   = "business-analytics-refresh"
)

// JobScheduler runs the periodic subscription maintenance.
type JobScheduler struct {
	scheduler     gocron.Scheduler
	subscriptions services.SubscriptionService
	logger        *zap.Logger
	now           func() time.Time
	jobs          map[string]gocron.Job
	mu            sync.RWMutex
}

func NewJobScheduler(subscriptions services.SubscriptionService, cfg config.JobsConfig, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler:     scheduler,
		subscriptions: subscriptions,
		logger:        logger.With(zap.String("component", "scheduler")),
		now:           func() time.Time { return time.Now().UTC() },
		jobs:          make(map[string]gocron.Job),
	}
	if err := js.registerJobs(cfg); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler", zap.Strings("jobs", js.JobNames()))
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// JobNames lists the registered jobs in name order.
func (js *JobScheduler) JobNames() []string {
	js.mu.RLock()
	defer js.mu.RUnlock()
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (js *JobScheduler) registerJobs(cfg config.JobsConfig) error {
	defs := []struct {
		name     string
		interval time.Duration
		task     func(context.Context) error
	}{
		{JobSubscriptionExpiry, cfg.ExpiryInterval, js.expireSubscriptions},
		{JobAnalyticsRefresh, cfg.AnalyticsInterval, js.refreshAnalytics},
	}

	js.mu.Lock()
	defer js.mu.Unlock()
	for _, def := range defs {
		if def.interval <= 0 {
			js.logger.Warn("job disabled", zap.String("job", def.name))
			continue
		}
		job, err := js.scheduler.NewJob(
			gocron.DurationJob(def.interval),
			gocron.NewTask(def.task, context.Background()),
			gocron.WithName(def.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
		js.jobs[def.name] = job
	}
	return nil
}

// expireSubscriptions closes every subscription and voucher past its end date.
func (js *JobScheduler) expireSubscriptions(ctx context.Context) error {
	res, err := js.subscriptions.ExpireDue(ctx, js.now())
	if err != nil {
		js.logger.Error("subscription expiry failed", zap.Error(err))
		return err
	}
	if res.Subscriptions+res.Vouchers+res.Users > 0 {
		js.logger.Info("subscriptions expired",
			zap.Int64("subscriptions", res.Subscriptions),
			zap.Int64("vouchers", res.Vouchers),
			zap.Int64("users", res.Users))
	}
	return nil
}

func (js *JobScheduler) refreshAnalytics(ctx context.Context) error {
	start := time.Now()
	n, err := js.subscriptions.RefreshAnalytics(ctx, js.now())
	if err != nil {
		js.logger.Error("analytics refresh failed", zap.Error(err))
		return err
	}
	js.logger.Debug("business analytics refreshed",
		zap.Int("businesses", n),
		zap.Duration("took", time.Since(start)))
	return nil
}
