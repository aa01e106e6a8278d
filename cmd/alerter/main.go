package main

import (
	"context"

	"weather-alerts/internal/bootstrap"
	"weather-alerts/internal/config"
	"weather-alerts/pkg/logging"
)

func main() {
	rt, err := bootstrap.Load("weather-alerter", config.RoleAlert)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	ctx := context.Background()
	rt.Logger.Info(ctx, "[ALERTER_START] Starting alert evaluation", logging.Fields{
		"version":  bootstrap.Version,
		"backend":  rt.Config.Store.Backend,
		"triggers": rt.Config.Alert.Triggers,
		"lookback": rt.Config.Alert.Lookback,
	})

	result, err := rt.RunAlert(ctx)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	rt.Logger.Info(ctx, "[ALERTER_COMPLETE] Alert run finished", logging.Fields{
		"result":     result.Result(),
		"deliveries": len(result.Deliveries),
	})
}
