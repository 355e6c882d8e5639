package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// mutationTimeout bounds storage writes issued from request handlers.
const mutationTimeout = 7 * time.Second

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// monthLabel renders a month selector value for display. "all" stays a
// keyword; numeric months get the Vietnamese label.
func monthLabel(month string) string {
	if month == "all" || month == "" {
		return "Cả năm"
	}
	return "Tháng " + strings.TrimPrefix(month, "0")
}
