package config

import (
	"errors"
	"fmt"
	"time"

	"dario.cat/mergo"
)

// Defaults applied when no source sets a value.
const (
	DefaultFormatVersion  = "4"
	DefaultCipher         = "aes256"
	DefaultCompression    = "gzip"
	DefaultKDF            = "argon2d"
	DefaultKDFMemoryMiB   = 64
	DefaultKDFIterations  = 10
	DefaultKDFParallelism = 2
	DefaultKDFRounds      = 100_000
	DefaultKDFMaxRounds   = 1 << 30
	DefaultWorkerTimeout  = 5 * time.Minute
	DefaultLogLevel       = "info"
)

type configBuilder struct {
	configs []*StructuredConfig
	rest    []string
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*StructuredConfig, 0, 4),
	}
}

func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occured during building config: %w", b.err)
	}

	config := new(StructuredConfig)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	return config, config.validate()
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := &StructuredConfig{}
	if err := parseEnv(envCfg); err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withFlags(args []string) *configBuilder {
	flags, rest, err := ParseFlags(args)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.rest = rest
	b.configs = append(b.configs, flags)
	return b
}

func (b *configBuilder) withJSON() *configBuilder {
	var jsonPath string
	for _, cfg := range b.configs {
		if cfg.JSONFilePath != "" {
			jsonPath = cfg.JSONFilePath
			break
		}
	}

	if jsonPath != "" {
		jsonCfg, err := parseJSON(jsonPath)
		if err != nil {
			b.err = errors.Join(b.err, err)
			return b
		}
		b.configs = append(b.configs, jsonCfg)
	}

	return b
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, Defaults())
	return b
}

// Defaults returns the built-in configuration.
func Defaults() *StructuredConfig {
	return &StructuredConfig{
		Format: Format{
			Version:     DefaultFormatVersion,
			Cipher:      DefaultCipher,
			Compression: DefaultCompression,
		},
		KDF: KDF{
			Name:        DefaultKDF,
			MemoryMiB:   DefaultKDFMemoryMiB,
			Iterations:  DefaultKDFIterations,
			Parallelism: DefaultKDFParallelism,
			Rounds:      DefaultKDFRounds,
			MaxRounds:   DefaultKDFMaxRounds,
		},
		Workers: Workers{Timeout: DefaultWorkerTimeout},
		Log:     Log{Level: DefaultLogLevel},
	}
}
