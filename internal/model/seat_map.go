package model

import "strings"

// SeatMap is the seat grid of one screening as served to clients.
type SeatMap struct {
	ScreeningID uint64        `json:"screeningId"`
	Rows        uint32        `json:"rows"`
	Cols        uint32        `json:"cols"`
	Seats       []SeatMapSeat `json:"seats"`
}

// SeatMapSeat is one cell of a SeatMap.  Row is the row label (A, B, ...,
// AA) and Number the 1-based column.
type SeatMapSeat struct {
	ID     uint64 `json:"id"`
	Row    string `json:"row"`
	Number uint32 `json:"number"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// Seat returns the cell with the given id.
func (m *SeatMap) Seat(id uint64) (SeatMapSeat, bool) {
	for _, s := range m.Seats {
		if s.ID == id {
			return s, true
		}
	}
	return SeatMapSeat{}, false
}

// Available reports whether the seat exists and can be selected.
func (m *SeatMap) Available(id uint64) bool {
	s, ok := m.Seat(id)
	return ok && s.Status == MapAvailable
}

// Grid lays the seats out as Rows × Cols, indexed by row label position
// and 1-based seat number.  Positions without a seat are nil.
func (m *SeatMap) Grid() [][]*SeatMapSeat {
	grid := make([][]*SeatMapSeat, m.Rows)
	for r := range grid {
		grid[r] = make([]*SeatMapSeat, m.Cols)
	}
	for i := range m.Seats {
		s := &m.Seats[i]
		r, ok := RowLabelToIndex(s.Row)
		if !ok || r >= int(m.Rows) || s.Number < 1 || s.Number > m.Cols {
			continue
		}
		grid[r][s.Number-1] = s
	}
	return grid
}

// Prune splits ids into the seats that are still available and the ones
// that are not, keeping the input order.
func (m *SeatMap) Prune(ids []uint64) (kept, dropped []uint64) {
	for _, id := range ids {
		if m.Available(id) {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return kept, dropped
}

// IndexToRowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func IndexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	res := []rune{}
	for {
		rem := i % 26
		res = append(res, rune('A'+rem))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

// RowLabelToIndex converts a row label like A or AA into its zero-based index.
func RowLabelToIndex(label string) (int, bool) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if s == "" {
		return -1, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 'A' || ch > 'Z' {
			return -1, false
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, true
}
