package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// PricingRuleRepo persists pricing rules.  A NULL screen_id marks a global
// rule that applies to every screen.
type PricingRuleRepo struct {
	db *sql.DB
}

// NewPricingRuleRepo constructs a PricingRuleRepo.
func NewPricingRuleRepo(db *sql.DB) *PricingRuleRepo { return &PricingRuleRepo{db: db} }

const ruleColumns = `id, screen_id, kind, op, amount, priority, valid_from, valid_to, enabled, created_at`

func scanRule(s rowScanner) (*pricing.Rule, error) {
	var r pricing.Rule
	var screenID sql.NullInt64
	var kind, op string
	var from, to sql.NullTime
	if err := s.Scan(&r.ID, &screenID, &kind, &op, &r.Amount, &r.Priority, &from, &to, &r.Enabled, &r.CreatedAt); err != nil {
		return nil, err
	}
	if screenID.Valid {
		id := uint64(screenID.Int64)
		r.ScreenID = &id
	}
	r.Kind = pricing.Kind(kind)
	r.Op = pricing.Op(op)
	if from.Valid {
		t := from.Time.UTC()
		r.ValidFrom = &t
	}
	if to.Valid {
		t := to.Time.UTC()
		r.ValidTo = &t
	}
	return &r, nil
}

func (r *PricingRuleRepo) list(ctx context.Context, q string, args ...interface{}) ([]pricing.Rule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []pricing.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rule)
	}
	return out, rows.Err()
}

// ListByScreen returns the rules scoped to one screen.
func (r *PricingRuleRepo) ListByScreen(ctx context.Context, screenID uint64) ([]pricing.Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE screen_id = ? ORDER BY priority, id`, screenID)
}

// ListGlobal returns the rules without a screen.
func (r *PricingRuleRepo) ListGlobal(ctx context.Context) ([]pricing.Rule, error) {
	return r.list(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE screen_id IS NULL ORDER BY priority, id`)
}

// ListForScreen returns the screen's rules merged with the global rules,
// screen rules winning on duplicate ids.
func (r *PricingRuleRepo) ListForScreen(ctx context.Context, screenID uint64) ([]pricing.Rule, error) {
	local, err := r.ListByScreen(ctx, screenID)
	if err != nil {
		return nil, err
	}
	global, err := r.ListGlobal(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.Merge(local, global), nil
}

// GetByID returns ErrNotFound for an unknown rule.
func (r *PricingRuleRepo) GetByID(ctx context.Context, id uint64) (*pricing.Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// Create inserts a rule and reloads it.
func (r *PricingRuleRepo) Create(ctx context.Context, rule *pricing.Rule) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO pricing_rules (screen_id, kind, op, amount, priority, valid_from, valid_to, enabled) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ScreenID, string(rule.Kind), string(rule.Op), rule.Amount, rule.Priority,
		nullTime(rule.ValidFrom), nullTime(rule.ValidTo), rule.Enabled)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*rule = *got
	return nil
}

// Update overwrites a rule.  The screen scope cannot change.
func (r *PricingRuleRepo) Update(ctx context.Context, rule *pricing.Rule) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pricing_rules SET kind = ?, op = ?, amount = ?, priority = ?, valid_from = ?, valid_to = ?, enabled = ? WHERE id = ?`,
		string(rule.Kind), string(rule.Op), rule.Amount, rule.Priority,
		nullTime(rule.ValidFrom), nullTime(rule.ValidTo), rule.Enabled, rule.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule.
func (r *PricingRuleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
