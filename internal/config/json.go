package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] in the JSON file layout.
type StructuredJSONConfig struct {
	Format struct {
		Version     string `json:"version"`
		Cipher      string `json:"cipher"`
		Compression string `json:"compression"`
	} `json:"format,omitempty"`

	KDF struct {
		Name        string `json:"name"`
		MemoryMiB   uint64 `json:"memory_mib"`
		Iterations  uint64 `json:"iterations"`
		Parallelism uint32 `json:"parallelism"`
		Rounds      uint64 `json:"rounds"`
		MaxRounds   uint64 `json:"max_rounds"`
	} `json:"kdf,omitempty"`

	History struct {
		MaxItems int32 `json:"max_items"`
		MaxSize  int64 `json:"max_size"`
	} `json:"history,omitempty"`

	Storage struct {
		Files struct {
			Backup bool `json:"backup"`
		} `json:"files,omitempty"`

		Journal struct {
			DSN string `json:"dsn"`
		} `json:"journal,omitempty"`
	} `json:"storage,omitempty"`

	Workers struct {
		Timeout Duration `json:"timeout"`
	} `json:"workers,omitempty"`

	Log struct {
		Level string `json:"level"`
	} `json:"log,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Format: Format{
			Version:     jsonCfg.Format.Version,
			Cipher:      jsonCfg.Format.Cipher,
			Compression: jsonCfg.Format.Compression,
		},
		KDF: KDF{
			Name:        jsonCfg.KDF.Name,
			MemoryMiB:   jsonCfg.KDF.MemoryMiB,
			Iterations:  jsonCfg.KDF.Iterations,
			Parallelism: jsonCfg.KDF.Parallelism,
			Rounds:      jsonCfg.KDF.Rounds,
			MaxRounds:   jsonCfg.KDF.MaxRounds,
		},
		History: History{
			MaxItems: jsonCfg.History.MaxItems,
			MaxSize:  jsonCfg.History.MaxSize,
		},
		Storage: Storage{
			Files:   Files{Backup: jsonCfg.Storage.Files.Backup},
			Journal: Journal{DSN: jsonCfg.Storage.Journal.DSN},
		},
		Workers: Workers{
			Timeout: time.Duration(jsonCfg.Workers.Timeout),
		},
		Log: Log{
			Level: jsonCfg.Log.Level,
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
