package client

import (
	"testing"
	"time"
)

func TestRedialPause(t *testing.T) {
	tt := []struct {
		name         string
		serverClosed bool
		want         time.Duration
	}{
		{"server_close_redials_immediately", true, 0},
		{"dropped_connection_waits", false, minReconnectDelay},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := redialPause(tc.serverClosed); got != tc.want {
				t.Fatalf("want %v, got %v", tc.want, got)
			}
		})
	}
}
