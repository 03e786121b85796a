package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowLabels(t *testing.T) {
	cases := map[int]string{0: "A", 25: "Z", 26: "AA", 27: "AB", 701: "ZZ", 702: "AAA"}
	for idx, label := range cases {
		assert.Equal(t, label, IndexToRowLabel(idx))
		got, ok := RowLabelToIndex(label)
		assert.True(t, ok)
		assert.Equal(t, idx, got)
	}
	assert.Equal(t, "", IndexToRowLabel(-1))
	_, ok := RowLabelToIndex("A1")
	assert.False(t, ok)
	_, ok = RowLabelToIndex(" ")
	assert.False(t, ok)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, MapAvailable, MapStatus(SeatFree, true))
	assert.Equal(t, MapHeld, MapStatus(SeatHeld, true))
	assert.Equal(t, MapSold, MapStatus(SeatReserved, true))
	assert.Equal(t, MapBlocked, MapStatus(SeatFree, false))
	assert.Equal(t, MapBlocked, MapStatus("???", true))
}

func TestSeatMapSeat(t *testing.T) {
	m := SeatMap{Seats: []SeatMapSeat{{ID: 1}, {ID: 2, Status: MapSold}}}
	s, ok := m.Seat(2)
	assert.True(t, ok)
	assert.Equal(t, MapSold, s.Status)
	_, ok = m.Seat(3)
	assert.False(t, ok)
}

func TestSeatMapGrid(t *testing.T) {
	m := SeatMap{Rows: 2, Cols: 3, Seats: []SeatMapSeat{
		{ID: 1, Row: "A", Number: 1, Status: MapAvailable},
		{ID: 2, Row: "A", Number: 3, Status: MapHeld},
		{ID: 3, Row: "B", Number: 2, Status: MapSold},
		{ID: 4, Row: "C", Number: 1, Status: MapAvailable},
	}}
	g := m.Grid()
	assert.Len(t, g, 2)
	assert.Len(t, g[0], 3)
	assert.Equal(t, uint64(1), g[0][0].ID)
	assert.Nil(t, g[0][1])
	assert.Equal(t, uint64(2), g[0][2].ID)
	assert.Equal(t, uint64(3), g[1][1].ID)
}

func TestSeatMapPrune(t *testing.T) {
	m := SeatMap{Seats: []SeatMapSeat{
		{ID: 1, Status: MapAvailable},
		{ID: 2, Status: MapHeld},
		{ID: 3, Status: MapAvailable},
		{ID: 4, Status: MapBlocked},
	}}
	kept, dropped := m.Prune([]uint64{3, 2, 1, 9, 4})
	assert.Equal(t, []uint64{3, 1}, kept)
	assert.Equal(t, []uint64{2, 9, 4}, dropped)
	assert.True(t, m.Available(1))
	assert.False(t, m.Available(2))
	assert.False(t, m.Available(9))
}
