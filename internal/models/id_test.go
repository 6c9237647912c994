package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID("ep")
	assert.True(t, strings.HasPrefix(id, "ep_"))
	assert.Len(t, id, len("ep_")+26) // ULID body

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID("devt")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNewSecret(t *testing.T) {
	secret := NewSecret()
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.Len(t, secret, len("whsec_")+64) // 32 random bytes, hex encoded

	assert.NotEqual(t, secret, NewSecret())
}

func TestDeliveryStatusTerminal(t *testing.T) {
	terminal := map[DeliveryStatus]bool{
		DeliveryPending:    false,
		DeliveryProcessing: false,
		DeliveryRetrying:   false,
		DeliveryProcessed:  true,
		DeliveryFailed:     true,
		DeliveryCancelled:  true,
	}
	for status, want := range terminal {
		assert.Equal(t, want, status.Terminal(), string(status))
	}
}

func TestEndpointDeliverable(t *testing.T) {
	tests := []struct {
		name     string
		active   bool
		archived bool
		want     bool
	}{
		{"active", true, false, true},
		{"deactivated", false, false, false},
		{"archived", true, true, false},
		{"archived and inactive", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := Endpoint{Active: tt.active, Archived: tt.archived}
			assert.Equal(t, tt.want, ep.Deliverable())
		})
	}
}
