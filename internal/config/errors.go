package config

import "errors"

// Validation errors returned by [StructuredConfig.validate].
var (
	// ErrInvalidFormatConfigs indicates an unknown format version, cipher
	// or compression name.
	ErrInvalidFormatConfigs = errors.New("invalid format configuration")
	// ErrInvalidKDFConfigs indicates an unknown KDF or out-of-range costs.
	ErrInvalidKDFConfigs = errors.New("invalid kdf configuration")
	// ErrInvalidHistoryConfigs indicates negative history bounds other
	// than -1.
	ErrInvalidHistoryConfigs = errors.New("invalid history configuration")
	// ErrInvalidWorkerConfigs indicates a negative wait limit.
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
	// ErrInvalidLogConfigs indicates an unknown log level.
	ErrInvalidLogConfigs = errors.New("invalid log configuration")
)
