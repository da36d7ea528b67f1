package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulfillhq/slaengine/internal"
	"github.com/fulfillhq/slaengine/internal/command"
	"github.com/fulfillhq/slaengine/pkg/notifications"
	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/fulfillhq/slaengine/pkg/redis"
	"github.com/fulfillhq/slaengine/pkg/sla"
	"github.com/fulfillhq/slaengine/pkg/store"
	"github.com/okzk/sdnotify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := command.New()
	logs := cmd.Logs
	logger := cmd.Logger
	defer func() { _ = logger.Sync() }()

	logger.Infof("Starting SLA engine (%s)", internal.Version)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	db := cmd.Database(logs.GetChildLogger("database"))
	defer func() { _ = db.Close() }()
	if err := db.Connect(ctx); err != nil {
		logger.Fatalf("%+v", err)
	}

	orders := store.NewOrders(db, logs.GetChildLogger("store"))
	configs := store.NewConfigs(db, logs.GetChildLogger("store"))
	violations := store.NewViolations(db, logs.GetChildLogger("store"))
	dealers := store.NewDealers(db, logs.GetChildLogger("store"))

	detectorOpts := []sla.DetectorOption{}
	schedulerOpts := []sla.SchedulerOption{sla.WithDealerDirectory(dealers)}

	var rc *redis.Client
	if cmd.Config.Redis.Enabled() {
		rc = cmd.Redis(logs.GetChildLogger("redis"))
		defer func() { _ = rc.Close() }()

		notifier := notifications.NewStreamNotifier(
			rc, cmd.Config.Notifications.Stream, logs.GetChildLogger("notifications"),
		)
		detectorOpts = append(detectorOpts, sla.WithNotifier(notifier))
		schedulerOpts = append(schedulerOpts, sla.WithSchedulerNotifier(notifier))
	} else {
		logger.Info("Redis not configured, notifications are disabled")
	}

	detector := sla.NewDetector(
		orders, configs, violations,
		cmd.Location, logs.GetChildLogger("sla"), detectorOpts...,
	)
	scheduler := sla.NewScheduler(
		detector, orders, configs, violations,
		cmd.Config.SLA.SchedulerOptions(cmd.Location), logs.GetChildLogger("scheduler"), schedulerOpts...,
	)

	// SKU status transitions run through the order service so that packing
	// triggers the synchronous SLA check.
	orderSvc := order.NewService(
		orders, logs.GetChildLogger("order"), order.OnPacked(detector.HandleOrderPacked),
	)

	if rc != nil {
		consumer := notifications.NewStatusConsumer(
			rc, cmd.Config.Notifications.UpdatesStream, orderSvc, logs.GetChildLogger("intake"),
		)
		go consumer.Run(ctx)
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	_ = sdnotify.Ready()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	s := <-sig
	logger.Infow("Shutting down", "signal", s.String())
	_ = sdnotify.Stopping()
	cancelCtx()

	return 0
}
