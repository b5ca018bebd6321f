package config

import (
	"flag"
	"fmt"
	"io"
	"time"
)

// ParseFlags parses the global flags that precede the command name and
// returns the remaining arguments.
//
// Flags:
//
//	-c/-config json file path with configs
//	-format format version for written databases ("3.1" or "4")
//	-cipher outer cipher ("aes256", "twofish", "chacha20")
//	-compression body compression ("gzip" or "none")
//	-kdf key derivation function ("argon2d", "argon2id", "aes")
//	-kdf-memory Argon2 memory in MiB
//	-kdf-iterations Argon2 iterations
//	-kdf-parallelism Argon2 lanes
//	-kdf-rounds AES-KDF rounds
//	-kdf-max-rounds AES-KDF round limit when opening
//	-history-max-items history item limit override
//	-history-max-size history size limit override in bytes
//	-backup keep <file>.bak on save
//	-journal merge journal SQLite file
//	-timeout wait limit for one open or save (e.g., "30s", "5m")
//	-log-level log level
func ParseFlags(args []string) (*StructuredConfig, []string, error) {
	var cfg StructuredConfig

	fs := flag.NewFlagSet("kdbxctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.JSONFilePath, "c", "", "JSON config file path")
	fs.StringVar(&cfg.JSONFilePath, "config", "", "JSON config file path (alias)")
	fs.StringVar(&cfg.Format.Version, "format", "", "Format version of written databases")
	fs.StringVar(&cfg.Format.Cipher, "cipher", "", "Outer cipher")
	fs.StringVar(&cfg.Format.Compression, "compression", "", "Body compression")
	fs.StringVar(&cfg.KDF.Name, "kdf", "", "Key derivation function")
	fs.Uint64Var(&cfg.KDF.MemoryMiB, "kdf-memory", 0, "Argon2 memory in MiB")
	fs.Uint64Var(&cfg.KDF.Iterations, "kdf-iterations", 0, "Argon2 iterations")
	fs.Func("kdf-parallelism", "Argon2 lanes", func(s string) error {
		var n uint32
		if _, err := fmt.Sscan(s, &n); err != nil {
			return err
		}
		cfg.KDF.Parallelism = n
		return nil
	})
	fs.Uint64Var(&cfg.KDF.Rounds, "kdf-rounds", 0, "AES-KDF rounds")
	fs.Uint64Var(&cfg.KDF.MaxRounds, "kdf-max-rounds", 0, "AES-KDF round limit")
	fs.Func("history-max-items", "History item limit", func(s string) error {
		var n int32
		if _, err := fmt.Sscan(s, &n); err != nil {
			return err
		}
		cfg.History.MaxItems = n
		return nil
	})
	fs.Int64Var(&cfg.History.MaxSize, "history-max-size", 0, "History size limit in bytes")
	fs.BoolVar(&cfg.Storage.Files.Backup, "backup", false, "Keep <file>.bak on save")
	fs.StringVar(&cfg.Storage.Journal.DSN, "journal", "", "Merge journal SQLite file")
	fs.DurationVar(&cfg.Workers.Timeout, "timeout", time.Duration(0), "Wait limit for one open or save")
	fs.StringVar(&cfg.Log.Level, "log-level", "", "Log level")

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("error parsing flags: %w", err)
	}

	return &cfg, fs.Args(), nil
}
