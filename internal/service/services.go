package service

import (
	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/internal/store"
	"github.com/MKhiriev/kdbx-keeper/internal/validators"
	"github.com/MKhiriev/kdbx-keeper/models"
)

type Services struct {
	DatabaseService DatabaseService
}

func NewServices(storages *store.Storages, cfg *config.StructuredConfig, buildInfo models.AppBuildInfo, logger *logger.Logger) *Services {
	return &Services{
		DatabaseService: NewDatabaseService(storages, validators.NewDatabaseValidator(), cfg, buildInfo, logger,
			kdbx.WithMaxAESRounds(cfg.KDF.MaxRounds),
		),
	}
}
