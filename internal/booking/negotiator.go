// Package booking drives seat selection for one screening: it keeps the
// local selection in step with the live seat map, previews prices with
// the pricing engine and negotiates the hold with the server.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/cinema-ticketing/internal/client"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// MaxSeats is the most seats one booking may hold.
const MaxSeats = 8

// State is the negotiation state of a Negotiator.
type State int

const (
	Idle State = iota
	Ready
	Pending
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Pending:
		return "pending"
	case Held:
		return "held"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNotLoaded       = errors.New("seat map not loaded")
	ErrBusy            = errors.New("selection is locked while a hold is pending or held")
	ErrNotReady        = errors.New("selection does not match the ticket count")
	ErrNotHeld         = errors.New("no seats are held")
	ErrHoldExpired     = errors.New("seat hold expired")
	ErrSeatUnavailable = errors.New("seat is not available")
	ErrSelectionFull   = errors.New("too many seats selected")
	ErrInvalidCounts   = errors.New("invalid ticket counts")
	// ErrSeatConflict means some selected seats were taken by someone
	// else.  The selection has been pruned and the user should choose again.
	ErrSeatConflict = errors.New("seat conflict")
)

// API is the part of the ticketing API the negotiator uses.
type API interface {
	Screening(ctx context.Context, id uint64) (*model.Screening, error)
	SeatMap(ctx context.Context, screeningID uint64) (*model.SeatMap, error)
	PricingRules(ctx context.Context, screenID *uint64) ([]pricing.Rule, error)
	CreateHold(ctx context.Context, req client.HoldRequest, key string) (*client.Hold, error)
	ReleaseHold(ctx context.Context, bookingID uint64) error
	Checkout(ctx context.Context, bookingID uint64) (*client.Order, error)
}

var _ API = (*client.Client)(nil)

// Negotiator holds the selection state of one screening.  It is not safe
// for concurrent use.
type Negotiator struct {
	api         API
	screeningID uint64
	log         *slog.Logger

	screening *model.Screening
	seatMap   *model.SeatMap
	rules     []pricing.Rule
	selected  []uint64
	counts    pricing.Headcount
	state     State
	hold      *client.Hold

	newKey func() string
	now    func() time.Time
}

// New returns an Idle negotiator for screeningID.  Call Load before
// selecting seats.
func New(api API, screeningID uint64, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.Default()
	}
	return &Negotiator{
		api:         api,
		screeningID: screeningID,
		log:         log,
		counts:      pricing.Headcount{},
		newKey:      uuid.NewString,
		now:         time.Now,
	}
}

// Load fetches the screening, then the seat map and the screen's and
// global pricing rules in parallel.  Screen rules win over global rules
// with the same id.  The selection is pruned to seats still available.
func (n *Negotiator) Load(ctx context.Context) error {
	scr, err := n.api.Screening(ctx, n.screeningID)
	if err != nil {
		return err
	}
	var (
		sm            *model.SeatMap
		local, global []pricing.Rule
	)
	screenID := scr.ScreenID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sm, err = n.api.SeatMap(gctx, n.screeningID)
		return err
	})
	g.Go(func() (err error) {
		local, err = n.api.PricingRules(gctx, &screenID)
		return err
	})
	g.Go(func() (err error) {
		global, err = n.api.PricingRules(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	n.screening = scr
	n.seatMap = sm
	n.rules = pricing.Merge(local, global)
	if n.state != Held {
		n.selected, _ = sm.Prune(n.selected)
	}
	n.settle()
	return nil
}

// State returns the current state.
func (n *Negotiator) State() State { return n.state }

// SeatMap returns the last fetched seat map, or nil after a conflict
// invalidated it and the re-fetch failed.
func (n *Negotiator) SeatMap() *model.SeatMap { return n.seatMap }

// Rules returns the merged pricing rules.
func (n *Negotiator) Rules() []pricing.Rule { return n.rules }

// Selected returns the selected seat ids in selection order.
func (n *Negotiator) Selected() []uint64 { return append([]uint64(nil), n.selected...) }

// Counts returns a copy of the ticket counts.
func (n *Negotiator) Counts() pricing.Headcount {
	out := pricing.Headcount{}
	for k, v := range n.counts {
		out[k] = v
	}
	return out
}

// Hold returns the active hold, if any.
func (n *Negotiator) Hold() *client.Hold { return n.hold }

// Quote prices the current ticket counts.  It is a preview; the server
// prices the hold itself.
func (n *Negotiator) Quote() (pricing.Quote, error) {
	if n.screening == nil {
		return pricing.Quote{}, ErrNotLoaded
	}
	return pricing.NewQuote(decimal.NewFromInt(n.screening.BasePrice), n.rules, n.counts, n.now()), nil
}

func (n *Negotiator) locked() bool { return n.state == Pending || n.state == Held }

func (n *Negotiator) isSelected(id uint64) (int, bool) {
	for i, s := range n.selected {
		if s == id {
			return i, true
		}
	}
	return -1, false
}

// Toggle selects an available seat or deselects a selected one.
func (n *Negotiator) Toggle(seatID uint64) error {
	if n.locked() {
		return ErrBusy
	}
	if n.seatMap == nil {
		return ErrNotLoaded
	}
	if i, ok := n.isSelected(seatID); ok {
		n.selected = append(n.selected[:i], n.selected[i+1:]...)
		n.settle()
		return nil
	}
	if !n.seatMap.Available(seatID) {
		return ErrSeatUnavailable
	}
	if len(n.selected) >= MaxSeats {
		return ErrSelectionFull
	}
	n.selected = append(n.selected, seatID)
	n.settle()
	return nil
}

// SetCounts replaces the ticket counts.  Only ADULT and TEEN are sold.
func (n *Negotiator) SetCounts(h pricing.Headcount) error {
	if n.locked() {
		return ErrBusy
	}
	next := pricing.Headcount{}
	total := 0
	for k, c := range h {
		if (k != pricing.KindAdult && k != pricing.KindTeen) || c < 0 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidCounts, k, c)
		}
		if c > 0 {
			next[k] = c
			total += c
		}
	}
	if total > MaxSeats {
		return fmt.Errorf("%w: at most %d tickets", ErrSelectionFull, MaxSeats)
	}
	n.counts = next
	n.settle()
	return nil
}

// settle recomputes Idle/Ready from the selection.
func (n *Negotiator) settle() {
	if n.locked() {
		return
	}
	n.state = Idle
	total := n.counts.Total()
	if n.seatMap == nil || total == 0 || len(n.selected) != total {
		return
	}
	for _, id := range n.selected {
		if !n.seatMap.Available(id) {
			return
		}
	}
	n.state = Ready
}

func (n *Negotiator) countsBody() map[string]int {
	out := map[string]int{}
	for k, c := range n.counts {
		out[string(k)] = c
	}
	return out
}

// Submit requests a hold on the selection.  The seat map is re-fetched
// first; seats taken in the meantime are pruned and ErrSeatConflict is
// returned without calling the server.  A 409 from the server is handled
// the same way after re-fetching the map.  Every other failure returns the
// negotiator to Idle with the selection untouched.  There are no retries.
func (n *Negotiator) Submit(ctx context.Context) (*client.Hold, error) {
	n.settle()
	if n.state != Ready {
		return nil, ErrNotReady
	}
	n.state = Pending

	sm, err := n.api.SeatMap(ctx, n.screeningID)
	if err != nil {
		n.state = Idle
		return nil, err
	}
	n.seatMap = sm
	kept, dropped := sm.Prune(n.selected)
	if len(dropped) > 0 {
		n.selected = kept
		n.state = Idle
		return nil, fmt.Errorf("%w: seats %v are no longer available", ErrSeatConflict, dropped)
	}

	key := n.newKey()
	hold, err := n.api.CreateHold(ctx, client.HoldRequest{
		ScreeningID: n.screeningID,
		SeatIDs:     n.Selected(),
		Counts:      n.countsBody(),
	}, key)
	if err != nil {
		if client.IsConflict(err) {
			n.recoverConflict(ctx, err)
			n.state = Idle
			return nil, fmt.Errorf("%w: %w", ErrSeatConflict, err)
		}
		n.state = Idle
		return nil, err
	}
	n.hold = hold
	n.state = Held
	n.log.Info("seats held", "booking_id", hold.BookingID, "amount", hold.Amount, "replayed", hold.Replayed)
	return hold, nil
}

// recoverConflict drops the cached seat map, fetches a fresh one and
// prunes the selection against it.  Seats the server named are dropped
// even when the re-fetch fails.
func (n *Negotiator) recoverConflict(ctx context.Context, cause error) {
	n.seatMap = nil
	var apiErr *client.APIError
	if errors.As(cause, &apiErr) && len(apiErr.Unavailable) > 0 {
		gone := map[uint64]bool{}
		for _, id := range apiErr.Unavailable {
			gone[id] = true
		}
		kept := n.selected[:0]
		for _, id := range n.selected {
			if !gone[id] {
				kept = append(kept, id)
			}
		}
		n.selected = kept
	}
	sm, err := n.api.SeatMap(ctx, n.screeningID)
	if err != nil {
		n.log.Warn("seat map refresh after conflict failed", "screening_id", n.screeningID, "err", err)
		return
	}
	n.seatMap = sm
	n.selected, _ = sm.Prune(n.selected)
}

// expired clears a hold whose expiry has passed.
func (n *Negotiator) expired() bool {
	if n.hold == nil || n.hold.ExpiresAt == nil || n.now().Before(*n.hold.ExpiresAt) {
		return false
	}
	n.hold = nil
	n.selected = nil
	n.state = Idle
	return true
}

// Release gives the held seats back and returns to Idle with an empty
// selection.
func (n *Negotiator) Release(ctx context.Context) error {
	if n.state != Held || n.hold == nil {
		return ErrNotHeld
	}
	if err := n.api.ReleaseHold(ctx, n.hold.BookingID); err != nil {
		return err
	}
	n.hold = nil
	n.selected = nil
	n.state = Idle
	return nil
}

// Checkout opens a payment for the held booking and returns the order
// payload for the payment widget.
func (n *Negotiator) Checkout(ctx context.Context) (*client.Order, error) {
	if n.state != Held || n.hold == nil {
		return nil, ErrNotHeld
	}
	if n.expired() {
		return nil, ErrHoldExpired
	}
	return n.api.Checkout(ctx, n.hold.BookingID)
}

// Alert is the message to show the user for an error returned by the
// negotiator.
func Alert(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSeatConflict):
		return client.MsgConflict
	case errors.Is(err, ErrHoldExpired):
		return "좌석 선점 시간이 만료되었습니다. 좌석을 다시 선택해주세요."
	case errors.Is(err, ErrNotReady):
		return "선택한 좌석 수와 인원 수가 일치해야 합니다."
	case errors.Is(err, ErrSeatUnavailable):
		return "선택할 수 없는 좌석입니다."
	case errors.Is(err, ErrSelectionFull):
		return fmt.Sprintf("한 번에 최대 %d매까지 예매할 수 있습니다.", MaxSeats)
	case errors.Is(err, ErrInvalidCounts):
		return "인원은 성인과 청소년만 선택할 수 있습니다."
	}
	return client.Describe(err)
}
