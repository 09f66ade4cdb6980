package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName names the config directory and env prefix
	DefaultAppName       = "rpmdb"
	DefaultConfigPath    = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultDatabasePath  = filepath.Join(DefaultConfigPath, "packages")
	DefaultGlobalConfig  = filepath.Join(DefaultConfigPath, "config.yaml")
	DefaultDatabaseDSN   = "file::memory:?cache=shared"
	DefaultBackend       = "memory"
	DefaultLogLevel      = "info"
	DefaultHeaderCache   = 128
	DefaultIndexSizeHint = 16
	DefaultFpSizeHint    = 1024
	DefaultLookupWorkers = 4
	DefaultFingerprintFS = "/"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// GetLeveledLogger returns GetLogger filtered to the named level.
// Unknown level names fall back to info.
func GetLeveledLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return GetLogger().Level(lvl)
}
