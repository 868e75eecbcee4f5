// Package config provides configuration management for wastewatch.
//
// Configuration is read from a YAML file, filled with defaults, overlaid
// with environment variables and validated once at process start. The
// resulting *Config is passed explicitly to every component that needs it
// and is treated as immutable afterwards.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// Passing an empty path to LoadConfigWithEnvOverrides starts from Default().
//
// # Environment Variable Overrides
//
// Before overrides are applied, the dotenv files listed in EnvFiles (.env
// and .env.dev) are loaded when present. Variables already set in the
// process environment are never replaced by dotenv values.
//
// Environment variables follow the naming convention WASTEWATCH_SECTION_FIELD:
//
//   - WASTEWATCH_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - WASTEWATCH_RETENTION_PERIOD overrides retention.period_minutes
//   - WASTEWATCH_DETECT_CONFIDENCE overrides detector.confidence
//   - WASTEWATCH_API_KEY overrides security.api_keys (comma separated)
//   - WASTEWATCH_CORS_ORIGINS overrides server.cors.allowed_origins (comma separated)
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validate collects every problem into a single ValidationError made of
// FieldError values, so an operator sees all mistakes at once.
package config
