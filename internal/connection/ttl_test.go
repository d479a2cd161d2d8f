package connection

import (
	"testing"
	"time"
)

func TestExpiryDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := expiryDeadline(now, 0); !got.IsZero() {
		t.Errorf("expiryDeadline(now, 0) = %v, want zero", got)
	}
	if got, want := expiryDeadline(now, 2*time.Hour), now.Add(2*time.Hour); !got.Equal(want) {
		t.Errorf("expiryDeadline(now, 2h) = %v, want %v", got, want)
	}
}

func TestConnectionExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"no deadline", time.Time{}, false},
		{"future deadline", now.Add(time.Hour), false},
		{"past deadline", now.Add(-time.Hour), true},
		{"deadline exactly now", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &Connection{ID: "conn-1", ExpiresAt: tt.expiresAt}
			if got := conn.Expired(now); got != tt.want {
				t.Errorf("Expired(%v) with deadline %v = %v, want %v", now, tt.expiresAt, got, tt.want)
			}
		})
	}
}
