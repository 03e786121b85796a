package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// PriceSeats prices every seat of a hold.  Seats are taken in ascending id
// order and assigned kinds in Headcount.Kinds order (adults first), so a
// request for two adults and one teen over seats 7, 3, 5 charges seats 3
// and 5 as ADULT and seat 7 as TEEN.  The returned quote carries the
// per-kind trace and the total.
func PriceSeats(basePrice int64, rules []pricing.Rule, seatIDs []uint64, counts pricing.Headcount, at time.Time) ([]model.BookingSeat, pricing.Quote) {
	q := pricing.NewQuote(decimal.NewFromInt(basePrice), rules, counts, at)

	ids := append([]uint64(nil), seatIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	seats := make([]model.BookingSeat, 0, len(ids))
	next := 0
	for _, line := range q.Lines {
		for n := 0; n < line.Count && next < len(ids); n++ {
			seats = append(seats, model.BookingSeat{
				SeatID: ids[next],
				Kind:   string(line.Kind),
				Price:  line.UnitPrice,
			})
			next++
		}
	}
	return seats, q
}
