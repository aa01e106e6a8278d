package main

import (
	"context"
	"fmt"
	"os"

	"weather-alerts/internal/bootstrap"
	"weather-alerts/internal/config"
	"weather-alerts/pkg/logging"
)

func main() {
	rt, err := bootstrap.Load("weather-migrate", config.RoleMigrate)
	if err != nil {
		bootstrap.ExitConfigError(err)
	}

	ctx := bootstrap.NewRunContext(context.Background(), "migrate")

	store, err := rt.OpenStore(ctx)
	if err != nil {
		rt.Logger.Error(ctx, "[MIGRATE_ERROR] Could not open store", logging.Fields{
			"backend": rt.Config.Store.Backend,
		}, err)
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fmt.Printf("Initializing %s store\n", store.Backend())

	if err := store.Init(ctx); err != nil {
		rt.Logger.Error(ctx, "[MIGRATE_ERROR] Store initialization failed", nil, err)
		fmt.Fprintf(os.Stderr, "Failed to initialize store: %v\n", err)
		store.Close()
		os.Exit(1)
	}

	fmt.Println("Store initialized successfully")
}
