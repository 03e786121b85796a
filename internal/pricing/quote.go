package pricing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Headcount maps a ticket kind to the number of tickets of that kind.
type Headcount map[Kind]int

// Total returns the number of tickets across all kinds.
func (h Headcount) Total() int {
	n := 0
	for _, c := range h {
		if c > 0 {
			n += c
		}
	}
	return n
}

// Kinds returns the kinds with a positive count in a stable order
// (ADULT before TEEN, anything else alphabetically after).
func (h Headcount) Kinds() []Kind {
	kinds := make([]Kind, 0, len(h))
	for k, c := range h {
		if c > 0 {
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool {
		ri, rj := kindRank(kinds[i]), kindRank(kinds[j])
		if ri != rj {
			return ri < rj
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

func kindRank(k Kind) int {
	switch k {
	case KindAdult:
		return 0
	case KindTeen:
		return 1
	}
	return 2
}

// Line is the priced result for one ticket kind.
type Line struct {
	Kind      Kind   `json:"kind"`
	Count     int    `json:"count"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
	Result    Result `json:"result"`
}

// Quote is the priced breakdown for a headcount.
type Quote struct {
	Lines []Line `json:"lines"`
	Total int64  `json:"total"`
}

// NewQuote prices every kind in counts against the rules that apply to it.
func NewQuote(base decimal.Decimal, rules []Rule, counts Headcount, at time.Time) Quote {
	var q Quote
	for _, k := range counts.Kinds() {
		res := Apply(base, ForKind(rules, k), at)
		line := Line{
			Kind:      k,
			Count:     counts[k],
			UnitPrice: res.Price,
			Subtotal:  res.Price * int64(counts[k]),
			Result:    res,
		}
		q.Lines = append(q.Lines, line)
		q.Total += line.Subtotal
	}
	return q
}

// Label renders a trace entry for display, e.g. "프로모션 할인 2,000원".
func Label(e TraceEntry) string {
	if e.Skipped {
		return fmt.Sprintf("알 수 없는 규칙(%s)", e.Op)
	}
	switch e.Op {
	case OpSet:
		return "정가 " + Won(e.Amount) + "원"
	case OpPlus:
		return "가산 " + Won(e.Amount) + "원"
	case OpMinus:
		return "프로모션 할인 " + Won(e.Amount) + "원"
	case OpPctPlus:
		return "가산 " + e.Amount.String() + "%"
	case OpPctMinus:
		return "할인 " + e.Amount.String() + "%"
	}
	return string(e.Op)
}

// Won formats an amount with thousands separators and no fractional part.
func Won(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
