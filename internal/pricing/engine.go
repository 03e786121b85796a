package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply folds the active rules over base and returns the final price with
// the ordered trace of adjustments. Rules are filtered to those enabled
// and valid at `at`, then applied by (Priority, ID, CreatedAt) ascending.
// The final price is clamped at zero and rounded to a whole unit.
func Apply(base decimal.Decimal, rules []Rule, at time.Time) Result {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ActiveAt(at) {
			active = append(active, r)
		}
	}
	sortRules(active)

	price := base
	trace := make([]TraceEntry, 0, len(active))
	for _, r := range active {
		entry := TraceEntry{
			RuleID:   r.ID,
			Op:       r.Op,
			Amount:   r.Amount,
			Priority: r.Priority,
			Before:   price,
		}
		switch r.Op {
		case OpSet:
			price = r.Amount
		case OpPlus:
			price = price.Add(r.Amount)
		case OpMinus:
			price = price.Sub(r.Amount)
		case OpPctPlus:
			price = price.Add(price.Mul(r.Amount).Div(hundred))
		case OpPctMinus:
			price = price.Sub(price.Mul(r.Amount).Div(hundred))
		default:
			entry.Skipped = true
		}
		entry.After = price
		trace = append(trace, entry)
	}

	if price.IsNegative() {
		price = decimal.Zero
	}
	return Result{Price: price.Round(0).IntPart(), Trace: trace}
}

// sortRules orders rules in place by priority, then id, then creation time.
func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// ForKind returns the rules that apply to tickets of the given kind: rules
// scoped to that kind plus rules scoped to ALL or left unspecified.
func ForKind(rules []Rule, kind Kind) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Kind == kind || r.Kind == KindAll || r.Kind == KindUnspecified {
			out = append(out, r)
		}
	}
	return out
}

// Merge unions screen-local rules with global rules, de-duplicated by id.
// When both lists carry the same id the local rule wins. Local rules keep
// their order and come first.
func Merge(local, global []Rule) []Rule {
	seen := make(map[uint64]struct{}, len(local)+len(global))
	out := make([]Rule, 0, len(local)+len(global))
	for _, list := range [][]Rule{local, global} {
		for _, r := range list {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
