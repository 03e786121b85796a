package queue

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEvent(t *testing.T) {
	body, err := json.Marshal(BookingConfirmedEvent{
		BookingID:   10,
		UserID:      3,
		ScreeningID: 5,
		MovieTitle:  "파묘",
		StartsAt:    "2026-10-19T10:00:00Z",
		SeatLabels:  []string{"A1", "A2"},
		TotalAmount: 26000,
		OrderID:     "order_x",
		ConfirmedAt: "2026-10-19T09:00:00Z",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEvent(&buf, body))
	line := buf.String()
	assert.Contains(t, line, "booking_id=10")
	assert.Contains(t, line, `movie="파묘"`)
	assert.Contains(t, line, "total=26000 KRW")
	assert.Contains(t, line, "seats=[A1,A2]")
}

func TestWriteEvent_Rejects(t *testing.T) {
	assert.Error(t, WriteEvent(io.Discard, []byte("{")))
	assert.Error(t, WriteEvent(io.Discard, []byte(`{"user_id":1}`)))
}

func TestConsumerHandle_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "booking.log")
	c := &Consumer{LogPath: path, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, c.handle([]byte(`{"booking_id":1}`)))
	require.NoError(t, c.handle([]byte(`{"booking_id":2}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}
