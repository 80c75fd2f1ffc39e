package model_test

import (
	"encoding/json"
	"testing"

	"github.com/HananR99/Ruhutickets/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestReservationStatus_IsValid(t *testing.T) {
	assert.True(t, model.ReservationStatusHeld.IsValid())
	assert.True(t, model.ReservationStatusCommitted.IsValid())
	assert.True(t, model.ReservationStatusExpired.IsValid())
	assert.False(t, model.ReservationStatus("PENDING").IsValid())
	assert.False(t, model.ReservationStatus("").IsValid())
}

func TestReservationStatus_CanTransitionTo(t *testing.T) {
	// HELD 可以走向兩個終態
	assert.True(t, model.ReservationStatusHeld.CanTransitionTo(model.ReservationStatusCommitted))
	assert.True(t, model.ReservationStatusHeld.CanTransitionTo(model.ReservationStatusExpired))

	// 終態不可再轉換
	assert.False(t, model.ReservationStatusCommitted.CanTransitionTo(model.ReservationStatusExpired))
	assert.False(t, model.ReservationStatusCommitted.CanTransitionTo(model.ReservationStatusHeld))
	assert.False(t, model.ReservationStatusExpired.CanTransitionTo(model.ReservationStatusCommitted))
}

func TestIncomingNotification_DedupKey(t *testing.T) {
	t.Run("prefers nested reservation id", func(t *testing.T) {
		var n model.IncomingNotification
		err := json.Unmarshal([]byte(`{"reservation":{"id":"res-1"},"to":"someone"}`), &n)
		assert.NoError(t, err)
		assert.Equal(t, "res-1", n.DedupKey())
	})

	t.Run("falls back to reservation_id", func(t *testing.T) {
		var n model.IncomingNotification
		err := json.Unmarshal([]byte(`{"reservation_id":"res-2","to":"someone"}`), &n)
		assert.NoError(t, err)
		assert.Equal(t, "res-2", n.DedupKey())
	})

	t.Run("falls back to to", func(t *testing.T) {
		var n model.IncomingNotification
		err := json.Unmarshal([]byte(`{"to":"user@example.com"}`), &n)
		assert.NoError(t, err)
		assert.Equal(t, "user@example.com", n.DedupKey())
	})

	t.Run("empty when unattributable", func(t *testing.T) {
		var n model.IncomingNotification
		err := json.Unmarshal([]byte(`{"foo":"bar"}`), &n)
		assert.NoError(t, err)
		assert.Equal(t, "", n.DedupKey())
	})
}

func TestTicketType_Available(t *testing.T) {
	tt := model.TicketType{TotalQty: 50, SoldQty: 10}
	assert.Equal(t, 40, tt.Available())
}
