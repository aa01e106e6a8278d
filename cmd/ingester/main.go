package main

import (
	"context"
	"fmt"
	"strings"

	"weather-alerts/internal/bootstrap"
	"weather-alerts/internal/config"
	"weather-alerts/pkg/logging"
)

func main() {
	rt, err := bootstrap.Load("weather-ingester", config.RoleIngest)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	ctx := context.Background()
	rt.Logger.Info(ctx, "[INGESTER_START] Starting weather ingestion", logging.Fields{
		"version": bootstrap.Version,
		"cities":  rt.Config.Provider.Cities,
		"backend": rt.Config.Store.Backend,
	})

	result := rt.RunIngest(ctx)
	if result == nil {
		return
	}

	// Print results
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Succeeded: %d\n", result.Succeeded)
	fmt.Printf("Failed:    %d\n", result.Failed)
	fmt.Printf("Duration:  %v\n", result.Duration)
	for _, cr := range result.Cities {
		if cr.Err != nil {
			fmt.Printf("  - %s (%s): %v\n", cr.City, cr.Stage, cr.Err)
		}
	}
}
