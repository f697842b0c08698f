package web

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/cardbook/internal/export"
	"github.com/JonMunkholm/cardbook/internal/history"
)

// statusView is the data behind the status page (status.templ).
type statusView struct {
	Path         string
	FileSize     int64
	FileModified time.Time
	Limiter      export.LimiterStatus
	Runs         []history.Run
}

// fileSummary describes the exported file, e.g. "412 bytes, updated 2024-05-01 10:00:00".
func fileSummary(v statusView) string {
	return fmt.Sprintf("%d bytes, updated %s", v.FileSize, formatTime(v.FileModified))
}
