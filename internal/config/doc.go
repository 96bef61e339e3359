// Package config loads the worker and server configuration.
//
// Values are resolved in three layers: built-in defaults, an optional
// YAML file and environment variables. Command-line flags are applied on
// top by the cmd package. Every section has a Validate method; Config.Validate
// joins their errors.
//
// Environment variables use the MEETASSIST_ prefix, except for the Valkey
// connection settings, which keep the VALKEY_* names shared with other
// services in the same cluster.
package config
