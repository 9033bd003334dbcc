// Package config provides configuration structures and utilities for policyscan.
// It defines the scan options, their defaults and validation, and the
// optional YAML configuration file with per-site settings.
package config
