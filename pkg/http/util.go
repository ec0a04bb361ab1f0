package http

import (
	"time"

	xutil "MatchPulse/pkg/util"
)

// ParseIntDefault parses a query parameter or returns def when it is empty
// or invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTimeDefault parses a query-parameter timestamp or returns def when
// it is empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
