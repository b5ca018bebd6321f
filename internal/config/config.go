// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration of kdbxctl. It is
// populated by merging environment variables, command-line flags, an
// optional JSON file and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env:       direct environment variable name for scalar fields.
//
// Every variable is additionally prefixed with KDBX_.
type StructuredConfig struct {
	// Format holds the container parameters used for new and converted
	// databases.
	Format Format `envPrefix:"FORMAT_"`

	// KDF holds the key derivation settings for new and converted
	// databases.
	KDF KDF `envPrefix:"KDF_"`

	// History overrides the history bounds stored in database metadata.
	History History `envPrefix:"HISTORY_"`

	// Storage holds the database file and merge journal settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers bounds background open/save work.
	Workers Workers `envPrefix:"WORKERS_"`

	// Log holds logger settings.
	Log Log `envPrefix:"LOG_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via KDBX_CONFIG or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Format selects how databases are written.
type Format struct {
	// Version is "3.1" or "4" (KDBX_FORMAT_VERSION).
	Version string `env:"VERSION"`

	// Cipher is "aes256", "twofish" or "chacha20" (KDBX_FORMAT_CIPHER).
	Cipher string `env:"CIPHER"`

	// Compression is "gzip" or "none" (KDBX_FORMAT_COMPRESSION).
	Compression string `env:"COMPRESSION"`
}

// KDF configures key derivation.
type KDF struct {
	// Name is "argon2d", "argon2id" or "aes" (KDBX_KDF_NAME).
	Name string `env:"NAME"`

	// MemoryMiB is the Argon2 memory cost (KDBX_KDF_MEMORY_MIB).
	MemoryMiB uint64 `env:"MEMORY_MIB"`

	// Iterations is the Argon2 time cost (KDBX_KDF_ITERATIONS).
	Iterations uint64 `env:"ITERATIONS"`

	// Parallelism is the Argon2 lane count (KDBX_KDF_PARALLELISM).
	Parallelism uint32 `env:"PARALLELISM"`

	// Rounds is the AES-KDF round count (KDBX_KDF_ROUNDS).
	Rounds uint64 `env:"ROUNDS"`

	// MaxRounds is the largest AES-KDF round count an opened database may
	// ask for (KDBX_KDF_MAX_ROUNDS).
	MaxRounds uint64 `env:"MAX_ROUNDS"`
}

// History overrides entry history bounds. Zero keeps the value stored in
// the database.
type History struct {
	MaxItems int32 `env:"MAX_ITEMS"`
	MaxSize  int64 `env:"MAX_SIZE"`
}

// Storage groups the persistence settings.
type Storage struct {
	// Files holds database file settings.
	Files Files `envPrefix:"FILES_"`

	// Journal holds the merge journal settings.
	Journal Journal `envPrefix:"JOURNAL_"`
}

// Files holds database file settings.
type Files struct {
	// Backup keeps the previous file as <name>.bak on every save
	// (KDBX_STORAGE_FILES_BACKUP).
	Backup bool `env:"BACKUP"`
}

// Journal holds the merge journal connection settings.
type Journal struct {
	// DSN is the SQLite database file. Empty disables the journal
	// (KDBX_STORAGE_JOURNAL_DSN).
	DSN string `env:"DSN"`
}

// Workers bounds background work.
type Workers struct {
	// Timeout limits how long a caller waits for one open or save
	// (KDBX_WORKERS_TIMEOUT).
	Timeout time.Duration `env:"TIMEOUT"`
}

// Log holds logger settings.
type Log struct {
	// Level is a zerolog level name (KDBX_LOG_LEVEL).
	Level string `env:"LEVEL"`
}

// GetStructuredConfig loads, merges, and validates the configuration from
// all available sources in the following priority order (earlier sources
// win for non-zero fields):
//  1. Environment variables
//  2. Command-line flags parsed from args
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Defaults
//
// The arguments left after the flags are returned.
func GetStructuredConfig(args []string) (*StructuredConfig, []string, error) {
	b := newConfigBuilder().
		withEnv().
		withFlags(args).
		withJSON().
		withDefaults()

	cfg, err := b.build()
	return cfg, b.rest, err
}
