package bootstrap

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"weather-alerts/internal/models"
	"weather-alerts/pkg/logging"
)

// cronLogger adapts StructuredLogger to cron.Logger.
type cronLogger struct {
	logger *logging.StructuredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(context.Background(), "[SCHEDULER] "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(context.Background(), "[SCHEDULER_ERROR] "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logging.Fields {
	fields := logging.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// Job is one scheduled pipeline.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// Jobs returns the ingest and alert pipelines with their configured schedules.
func (rt *Runtime) Jobs() []Job {
	return []Job{
		{
			Name: PipelineIngest,
			Spec: rt.Config.Schedule.Ingest,
			Run:  func(ctx context.Context) { rt.RunIngest(ctx) },
		},
		{
			Name: PipelineAlert,
			Spec: rt.Config.Schedule.Alert,
			Run: func(ctx context.Context) {
				if _, err := rt.RunAlert(ctx); err != nil {
					rt.Logger.Error(ctx, "[SCHEDULER_ALERT_ERROR] Alert run rejected", logging.Fields{
						"transient": models.IsTransient(err),
					}, err)
				}
			},
		},
	}
}

// NewScheduler registers jobs on a cron that skips a run while the previous one
// of the same job is still going. Invalid specs are configuration errors.
func (rt *Runtime) NewScheduler(ctx context.Context, jobs []Job) (*cron.Cron, error) {
	logger := cronLogger{logger: rt.Logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	for _, job := range jobs {
		job := job
		wrapped := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
			job.Run(ctx)
		}))
		if _, err := c.AddJob(job.Spec, wrapped); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", job.Spec, job.Name, err)
		}
		rt.Logger.Info(ctx, "[SCHEDULER_JOB] Job scheduled", logging.Fields{
			"job":  job.Name,
			"spec": job.Spec,
		})
	}

	return c, nil
}
