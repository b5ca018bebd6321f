// Package config provides configuration loading, merging, and validation
// facilities for kdbxctl.
//
// Configuration is assembled from multiple sources; for every field the
// first source that sets it wins:
//  1. Environment variables (KDBX_ prefix)
//  2. Command-line flags
//  3. JSON config file
//  4. Built-in defaults
//
// The main entry point is [GetStructuredConfig]. [StructuredConfig.FormatSettings]
// turns the result into the container parameters of a database.
package config
