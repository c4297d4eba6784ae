package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"tally/internal/cli"
	"tally/internal/log"
	"tally/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting tally-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

	res := cli.InitBackend(context.Background(), logger, cfg)

	orch := services.NewOrchestrator(res.Ledger, services.NewStateStore(), services.OrchestratorConfig{
		Location: loc,
		Notifier: res.Notifier,
		History:  res.History,
		Logger:   logger,
	})

	cronLogger := log.NewCronLogger(logger)
	scheduler := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger)),
	)
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		orch.Trigger(services.TriggerSchedule)
	}); err != nil {
		logger.Error("Invalid reconcile schedule", log.FieldError, err, "schedule", cfg.ReconcileSchedule)
		res.Cleanup()
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down tally-worker...")
		<-scheduler.Stop().Done()
		if err := orch.Stop(ctx); err != nil {
			logger.Warn("Orchestrator did not stop in time", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Cleanup failed", log.FieldError, err)
		}
	})

	logger.Info("Reconciliation configured",
		"schedule", cfg.ReconcileSchedule,
		"timezone", loc.String(),
		"backend", cfg.DataBackend)

	// Run the first cycle before serving the schedule
	if snap, err := orch.RunCycle(ctx, services.TriggerStartup); err != nil {
		logger.Error("Initial reconciliation failed", log.FieldError, err, log.FieldErrorType, log.ErrorType(err))
	} else {
		logger.Info("Initial reconciliation complete",
			log.FieldCycleSeq, snap.Seq,
			log.FieldEvents, len(snap.Events),
			"balance", snap.Balance.Balance.String())
	}

	if err := orch.Start(ctx); err != nil {
		logger.Error("Failed to start orchestrator", log.FieldError, err)
		res.Cleanup()
		return
	}
	scheduler.Start()

	cli.WaitForShutdown(ctx, done)
}
