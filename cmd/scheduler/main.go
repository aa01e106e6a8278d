package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"weather-alerts/internal/bootstrap"
	"weather-alerts/internal/config"
	"weather-alerts/pkg/logging"
)

func main() {
	rt, err := bootstrap.Load("weather-scheduler", config.RoleScheduler)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs := rt.Jobs()
	c, err := rt.NewScheduler(ctx, jobs)
	if err != nil {
		bootstrap.ExitConfigError(&config.ConfigurationError{Err: err})
	}

	rt.Logger.Info(ctx, "[SCHEDULER_START] Running pipelines once at startup", logging.Fields{
		"version": bootstrap.Version,
	})
	for _, job := range jobs {
		job.Run(ctx)
	}

	c.Start()
	<-ctx.Done()

	rt.Logger.Info(context.Background(), "[SHUTDOWN] Waiting for running jobs", logging.Fields{})
	<-c.Stop().Done()
	rt.Logger.Info(context.Background(), "[SHUTDOWN_COMPLETE] Scheduler stopped", logging.Fields{})
}
