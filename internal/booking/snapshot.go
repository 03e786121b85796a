package booking

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/client"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// Snapshot is the cart summary kept on disk so an interrupted session can
// pick up its selection or its hold.
type Snapshot struct {
	ScreeningID uint64         `json:"screeningId"`
	SeatIDs     []uint64       `json:"seatIds"`
	Counts      map[string]int `json:"counts"`
	BookingID   uint64         `json:"bookingId,omitempty"`
	Amount      int64          `json:"amount,omitempty"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	SavedAt     time.Time      `json:"savedAt"`
}

// Snapshot captures the selection and any hold.
func (n *Negotiator) Snapshot() Snapshot {
	s := Snapshot{
		ScreeningID: n.screeningID,
		SeatIDs:     n.Selected(),
		Counts:      n.countsBody(),
		SavedAt:     n.now().UTC(),
	}
	if n.hold != nil {
		s.BookingID = n.hold.BookingID
		s.Amount = n.hold.Amount
		s.ExpiresAt = n.hold.ExpiresAt
	}
	return s
}

// Restore applies a snapshot of the same screening.  An unexpired hold
// puts the negotiator back into Held; otherwise the selection and counts
// are restored and readiness is re-evaluated against the loaded map.
func (n *Negotiator) Restore(s Snapshot) error {
	if s.ScreeningID != n.screeningID {
		return errors.New("snapshot belongs to another screening")
	}
	if n.locked() {
		return ErrBusy
	}
	counts := pricing.Headcount{}
	for k, c := range s.Counts {
		counts[pricing.ParseKind(k)] += c
	}
	if err := n.SetCounts(counts); err != nil {
		return err
	}
	n.selected = append([]uint64(nil), s.SeatIDs...)
	if s.BookingID != 0 && s.ExpiresAt != nil && n.now().Before(*s.ExpiresAt) {
		n.hold = &client.Hold{BookingID: s.BookingID, Amount: s.Amount, ExpiresAt: s.ExpiresAt}
		n.state = Held
		return nil
	}
	if n.seatMap != nil {
		n.selected, _ = n.seatMap.Prune(n.selected)
	}
	n.settle()
	return nil
}

// SaveSnapshot writes s to path atomically.
func SaveSnapshot(path string, s Snapshot) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.  A missing file
// yields an error matching os.ErrNotExist.
func LoadSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(b, &s)
	return s, err
}

// ClearSnapshot removes the file at path.  A missing file is not an error.
func ClearSnapshot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
