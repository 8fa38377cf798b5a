package services

import (
	"testing"

	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return log
}
