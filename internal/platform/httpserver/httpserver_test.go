package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"altona/internal/platform/config"
)

func TestNewAppliesConfiguredTimeouts(t *testing.T) {
	cfg := config.HTTPConfig{
		Addr:              ":9090",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       8 * time.Second,
		WriteTimeout:      16 * time.Second,
	}

	srv := New(cfg, http.NewServeMux())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 2*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 8*time.Second, srv.ReadTimeout)
	assert.Equal(t, 16*time.Second, srv.WriteTimeout)
}
