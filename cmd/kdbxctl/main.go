package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/kdbx-keeper/internal/client"
	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/internal/service"
	"github.com/MKhiriev/kdbx-keeper/internal/store"
	"github.com/MKhiriev/kdbx-keeper/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	os.Exit(run())
}

func run() int {
	buildInfo := models.NewAppBuildInfo(buildVersion, buildDate, buildCommit)

	cfg, args, err := config.GetStructuredConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdbxctl: error getting configs: %v\n", err)
		return 2
	}

	log, err := logger.NewLogger("kdbxctl").WithLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kdbxctl: %v\n", err)
		return 2
	}
	log.Debug().Any("config", cfg).Msg("received configs")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storages, err := store.NewStorages(ctx, cfg.Storage, log)
	if err != nil {
		log.Error().Err(err).Msg("error creating storages")
		return 1
	}
	defer storages.Close()

	services := service.NewServices(storages, cfg, buildInfo, log)
	app := client.NewApp(services, cfg, buildInfo, client.NewPasswordReader(os.Stdin, os.Stderr), os.Stdout, log)

	if err = app.Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "kdbxctl: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, client.ErrUsage), errors.Is(err, client.ErrUnknownCommand):
		return 2
	case kdbx.IsCredentialsError(err):
		return 3
	default:
		return 1
	}
}
