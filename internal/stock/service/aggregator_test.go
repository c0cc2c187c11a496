package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
)

func TestDaysRemaining_UTCDatesInWesternZone(t *testing.T) {
	// Expiry dates are stored as midnight UTC. The countdown must not lose
	// a day when the server's local zone sits west of UTC.
	setLocalZone(t, "America/New_York")

	now := time.Now().UTC()
	utcDate := func(days int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
	}

	tests := []struct {
		name string
		days int
	}{
		{"expires today", 0},
		{"one week out", 7},
		{"window edge", 30},
		{"already expired", -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := &repository.Lot{ExpiryDate: utcDate(tt.days)}
			assert.Equal(t, tt.days, service.DaysRemaining(lot))
		})
	}
}
