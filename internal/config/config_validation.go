// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
)

var (
	formatVersions = []string{"3", "3.1", "4", "4.0", "4.1"}
	compressions   = []string{"gzip", "none"}
	ciphers        = []string{"aes256", "aes", "twofish", "chacha20"}
	kdfNames       = []string{"argon2d", "argon2", "argon2id", "aes", "aes-kdf"}
)

// validate checks that the final merged [StructuredConfig] is usable.
// Every failing group is reported.
func (cfg *StructuredConfig) validate() error {
	var errs []error

	if !slices.Contains(formatVersions, cfg.Format.Version) {
		errs = append(errs, fmt.Errorf("%w: version %q", ErrInvalidFormatConfigs, cfg.Format.Version))
	}
	if cfg.Format.Cipher != "" && !slices.Contains(ciphers, cfg.Format.Cipher) {
		errs = append(errs, fmt.Errorf("%w: cipher %q", ErrInvalidFormatConfigs, cfg.Format.Cipher))
	}
	if cfg.Format.Compression != "" && !slices.Contains(compressions, cfg.Format.Compression) {
		errs = append(errs, fmt.Errorf("%w: compression %q", ErrInvalidFormatConfigs, cfg.Format.Compression))
	}

	if cfg.KDF.Name != "" && !slices.Contains(kdfNames, cfg.KDF.Name) {
		errs = append(errs, fmt.Errorf("%w: name %q", ErrInvalidKDFConfigs, cfg.KDF.Name))
	}
	if cfg.KDF.Parallelism > 255 {
		errs = append(errs, fmt.Errorf("%w: parallelism %d", ErrInvalidKDFConfigs, cfg.KDF.Parallelism))
	}
	if cfg.KDF.MaxRounds > crypto.MaxAESRounds {
		errs = append(errs, fmt.Errorf("%w: max rounds %d above %d", ErrInvalidKDFConfigs, cfg.KDF.MaxRounds, crypto.MaxAESRounds))
	}
	if cfg.KDF.MaxRounds > 0 && cfg.KDF.Rounds > cfg.KDF.MaxRounds {
		errs = append(errs, fmt.Errorf("%w: rounds %d above max rounds %d", ErrInvalidKDFConfigs, cfg.KDF.Rounds, cfg.KDF.MaxRounds))
	}

	if cfg.History.MaxItems < -1 || cfg.History.MaxSize < -1 {
		errs = append(errs, ErrInvalidHistoryConfigs)
	}

	if cfg.Workers.Timeout < 0 {
		errs = append(errs, ErrInvalidWorkerConfigs)
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidLogConfigs, err))
		}
	}

	return errors.Join(errs...)
}
