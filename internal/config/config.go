// Package config holds the resolved server configuration, populated
// directly from parsed CLI flags. There is no file-based layer: the
// system names no persisted state and no environment variables.
package config

import (
	"log/slog"
	"time"
)

// DefaultConnectionTimeout is the idle timeout applied to a client
// connection once accepted, absent any flag to override it.
const DefaultConnectionTimeout = 5000 * time.Millisecond

// Config is the fully resolved configuration for one server instance.
type Config struct {
	Threads           int
	Port              int
	Root              string
	Level             slog.Level
	ConnectionTimeout time.Duration
}
