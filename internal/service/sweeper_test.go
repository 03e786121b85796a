package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

func TestHoldSweeper_InvalidSpec(t *testing.T) {
	svc, _ := newBookingService(t, newWorld())
	_, err := NewHoldSweeper(svc, "every now and then", discardLogger())
	assert.Error(t, err)
}

func TestHoldSweeper_RunOnce(t *testing.T) {
	w := newWorld()
	w.seats[10][4] = model.SeatHeld
	w.bookings[50] = &model.Booking{ID: 50, UserID: 2, ScreeningID: 10, Status: model.BookingPending}
	w.holds = []model.SeatHold{{ID: 1, BookingID: 50, ScreeningID: 10, SeatID: 4, ExpiresAt: now.Add(-time.Minute)}}
	svc, mock := newBookingService(t, w)
	mock.ExpectBegin()
	mock.ExpectCommit()

	sw, err := NewHoldSweeper(svc, "@every 30s", discardLogger())
	require.NoError(t, err)
	sw.RunOnce()

	assert.Equal(t, model.SeatFree, w.seats[10][4])
	assert.Equal(t, model.BookingCancelled, w.bookings[50].Status)
	assert.Empty(t, w.holds)
}
