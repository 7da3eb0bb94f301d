package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.cidx/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cidx", "logs")
	}
	return filepath.Join(home, ".cidx", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "indexer.log")
}

// AuxLogPath returns the log path for the background index rebuilder.
func AuxLogPath() string {
	return filepath.Join(DefaultLogDir(), "aux.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceGo is the main indexing process logs (default).
	LogSourceGo LogSource = "go"
	// LogSourceAux is the background index rebuilder's logs.
	LogSourceAux LogSource = "aux"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.cidx/logs/indexer.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceGo:
		goPath := DefaultLogPath()
		checked = append(checked, goPath)
		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}

	case LogSourceAux:
		auxPath := AuxLogPath()
		checked = append(checked, auxPath)
		if _, err := os.Stat(auxPath); err == nil {
			paths = append(paths, auxPath)
		}

	case LogSourceAll:
		goPath := DefaultLogPath()
		auxPath := AuxLogPath()
		checked = append(checked, goPath, auxPath)

		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}
		if _, err := os.Stat(auxPath); err == nil {
			paths = append(paths, auxPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: go, aux, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "aux":
		return LogSourceAux
	case "all":
		return LogSourceAll
	default:
		return LogSourceGo
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceGo:
		return "To generate indexing logs:\n  cidx --debug index"
	case LogSourceAux:
		return "Rebuild logs are written automatically whenever a background index rebuild runs."
	case LogSourceAll:
		return "To generate logs:\n  Indexing: cidx --debug index\n  Rebuilds: triggered automatically on staleness"
	default:
		return ""
	}
}
