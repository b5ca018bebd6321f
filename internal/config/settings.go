package config

import (
	"fmt"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/models"
)

// FormatSettings builds the container parameters described by the
// configuration. Zero costs keep the KDF defaults.
func (cfg *StructuredConfig) FormatSettings() (models.FormatSettings, error) {
	settings := models.DefaultFormatSettings()

	if cfg.Format.Cipher != "" {
		c, err := crypto.ParseCipher(cfg.Format.Cipher)
		if err != nil {
			return settings, fmt.Errorf("%w: %w", ErrInvalidFormatConfigs, err)
		}
		settings.Cipher = c
	}
	settings.Compression = cfg.Format.Compression != "none"

	if cfg.KDF.Name != "" {
		kdf, err := crypto.ParseKDF(cfg.KDF.Name)
		if err != nil {
			return settings, fmt.Errorf("%w: %w", ErrInvalidKDFConfigs, err)
		}
		settings.KDF = kdf
	}

	switch kdf := settings.KDF.(type) {
	case *crypto.Argon2KDF:
		if cfg.KDF.MemoryMiB > 0 {
			kdf.Memory = cfg.KDF.MemoryMiB << 20
		}
		if cfg.KDF.Iterations > 0 {
			kdf.Iterations = cfg.KDF.Iterations
		}
		if cfg.KDF.Parallelism > 0 {
			kdf.Parallelism = cfg.KDF.Parallelism
		}
	case *crypto.AESKDF:
		if cfg.KDF.Rounds > 0 {
			kdf.Rounds = cfg.KDF.Rounds
		}
	}

	return settings, nil
}
