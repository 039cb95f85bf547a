// Package weftnum provides constants used across the weft ecosystem.
package weftnum

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Level int32

const (
	// Levels are ordered: a directive that allows InfoLevel also
	// allows WarnLevel and ErrorLevel.
	TraceLevel Level = 2  // trace
	DebugLevel Level = 5  // debug
	InfoLevel  Level = 9  // info
	WarnLevel  Level = 13 // warn
	ErrorLevel Level = 17 // error
)

const MaxLevel = ErrorLevel

func (level Level) String() string {
	switch level {
	case TraceLevel:
		return "trace"
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return strconv.Itoa(int(level))
	}
}

// LevelString turns a level name into a Level. Names are matched
// case-insensitively. The numbers 1-5 are accepted as alternates for
// trace, debug, info, warn, and error respectively.
func LevelString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "trace", "1":
		return TraceLevel, nil
	case "debug", "2":
		return DebugLevel, nil
	case "info", "3":
		return InfoLevel, nil
	case "warn", "warning", "4":
		return WarnLevel, nil
	case "error", "5":
		return ErrorLevel, nil
	}
	return 0, errors.Errorf("'%s' does not belong to Level values", s)
}
