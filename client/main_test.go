package client

import (
	"os"
	"testing"

	"github.com/arloliu/go-rhal/logger"
)

func TestMain(m *testing.M) {
	// unknown values fall back to info
	level, _ := logger.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger.SetLevel(level)

	os.Exit(m.Run())
}
