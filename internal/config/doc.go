// Package config loads roost's TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/roost/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # TOML Format
//
// Every field is optional:
//
//	controller_url   = "http://127.0.0.1:8080"
//	poll_interval    = "5s"
//	request_timeout  = "8s"   # per attempt
//	retries          = 2      # extra attempts per request
//	retry_base       = "250ms"
//	retry_max        = "4s"
//	max_poll_backoff = "60s"
//	offline_after    = 2      # consecutive failed polls
//	notify_timeout   = "4s"
//	cascade_skip_off = false  # skip disable commands for devices already off
//	log_level        = ""     # debug, info, warn, error; empty disables logging
//	log_file         = "~/.local/state/roost/roost.log"
//	metrics_addr     = ""     # e.g. "127.0.0.1:9310" to serve /metrics
//	theme            = "Slate"
//
// Durations use Go syntax (time.ParseDuration). Strings are trimmed and
// tilde paths are expanded. Load validates the result; a config the sync
// engine cannot run with is a startup error.
package config
