// Package logtail reads the end of roost's log file.
//
// The dashboard owns the terminal, so its log goes to a file (log_file in
// config.toml). `roost logs` uses Tail to print the most recent entries,
// optionally only those at or above a level, without loading the whole
// file into memory.
package logtail
