package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/c21-japan/homemart-sub002/pkg/config"
	"github.com/c21-japan/homemart-sub002/pkg/logger"
)

func TestWriteTimeoutCoversBatch(t *testing.T) {
	cfg := &config.Config{Port: "0", Reporting: config.ReportingConfig{LockTTL: 30 * time.Minute}}
	s := New(cfg, logger.NewNop(), nil)
	assert.Equal(t, 30*time.Minute, s.httpServer.WriteTimeout)

	cfg.Reporting.LockTTL = 0
	assert.Equal(t, 15*time.Second, writeTimeout(cfg))
}
