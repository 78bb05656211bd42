// Package config loads and validates Campus Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded
// defaults, and finally overridden by CAMPUSCORE_* environment
// variables. Load returns an error rather than a partially valid
// configuration: a service guarding dashboard access must not start
// with ambiguous security settings.
package config
