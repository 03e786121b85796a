// Package pricing evaluates layered price adjustment rules for screenings.
// A screening has a base price; rules configured per screen (or globally)
// adjust it in a deterministic order and every adjustment is recorded in a
// trace so the seat page can explain how the final price was reached.
package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Op is the operator a rule applies to the running price.
type Op string

const (
	OpSet      Op = "SET"       // price := amount
	OpPlus     Op = "PLUS"      // price += amount
	OpMinus    Op = "MINUS"     // price -= amount
	OpPctPlus  Op = "PCT_PLUS"  // price += price * amount / 100
	OpPctMinus Op = "PCT_MINUS" // price -= price * amount / 100
)

// Known reports whether the operator is one the evaluator understands.
func (o Op) Known() bool {
	switch o {
	case OpSet, OpPlus, OpMinus, OpPctPlus, OpPctMinus:
		return true
	}
	return false
}

// Kind is the audience category a rule or a ticket belongs to.
type Kind string

const (
	KindAdult       Kind = "ADULT"
	KindTeen        Kind = "TEEN"
	KindAll         Kind = "ALL"
	KindUnspecified Kind = ""
)

// ParseKind normalizes user input into a Kind. Unknown values map to
// KindUnspecified so that the rule applies to every ticket.
func ParseKind(s string) Kind {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindAdult:
		return KindAdult
	case KindTeen:
		return KindTeen
	case KindAll:
		return KindAll
	}
	return KindUnspecified
}

// Rule is a single price adjustment. ScreenID nil means the rule is global.
// ValidFrom and ValidTo are inclusive; a nil bound is open on that side.
type Rule struct {
	ID        uint64          `json:"id"`
	ScreenID  *uint64         `json:"screenId"`
	Kind      Kind            `json:"kind"`
	Op        Op              `json:"op"`
	Amount    decimal.Decimal `json:"amount"`
	Priority  int             `json:"priority"`
	ValidFrom *time.Time      `json:"validFrom"`
	ValidTo   *time.Time      `json:"validTo"`
	Enabled   bool            `json:"enabled"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ActiveAt reports whether the rule is enabled and t lies within its
// validity window.
func (r Rule) ActiveAt(t time.Time) bool {
	if !r.Enabled {
		return false
	}
	if r.ValidFrom != nil && t.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && t.After(*r.ValidTo) {
		return false
	}
	return true
}

// TraceEntry records one rule application. Skipped is set for rules whose
// operator was not recognized; those leave the price untouched.
type TraceEntry struct {
	RuleID   uint64          `json:"ruleId"`
	Op       Op              `json:"op"`
	Amount   decimal.Decimal `json:"amount"`
	Priority int             `json:"priority"`
	Before   decimal.Decimal `json:"before"`
	After    decimal.Decimal `json:"after"`
	Skipped  bool            `json:"skipped,omitempty"`
}

// Result is the outcome of Apply.
type Result struct {
	Price int64        `json:"price"`
	Trace []TraceEntry `json:"trace"`
}
