package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// RuleStore is the pricing rule persistence used by the admin screens.
type RuleStore interface {
	ListByScreen(ctx context.Context, screenID uint64) ([]pricing.Rule, error)
	ListGlobal(ctx context.Context) ([]pricing.Rule, error)
	GetByID(ctx context.Context, id uint64) (*pricing.Rule, error)
	Create(ctx context.Context, r *pricing.Rule) error
	Update(ctx context.Context, r *pricing.Rule) error
	Delete(ctx context.Context, id uint64) error
}

// PricingHandler manages pricing rules.  The list endpoint is also served
// publicly so the seat page can preview prices.
type PricingHandler struct {
	Rules RuleStore
	Log   *slog.Logger
	// Changed runs after every successful write.
	Changed func(ctx context.Context)
}

func NewPricingHandler(r RuleStore, log *slog.Logger) *PricingHandler {
	return &PricingHandler{Rules: r, Log: log}
}

func (h *PricingHandler) changed(ctx context.Context) {
	if h.Changed != nil {
		h.Changed(ctx)
	}
}

type ruleReq struct {
	ScreenID  *uint64          `json:"screenId"`
	Kind      string           `json:"kind"`
	Op        string           `json:"op"`
	Amount    *decimal.Decimal `json:"amount"`
	Priority  int              `json:"priority"`
	ValidFrom string           `json:"validFrom"`
	ValidTo   string           `json:"validTo"`
	Enabled   *bool            `json:"enabled"`
}

// parseBound accepts RFC 3339 or a bare date.  A bare end date covers the
// whole day.
func parseBound(raw string, end bool) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	if end {
		d = d.Add(24*time.Hour - time.Second)
	}
	return &d, true
}

// toRule validates a request body.  The returned message is empty when the
// rule is acceptable.
func (r ruleReq) toRule() (pricing.Rule, string) {
	op := pricing.Op(strings.ToUpper(strings.TrimSpace(r.Op)))
	if !op.Known() {
		return pricing.Rule{}, "op must be one of SET, PLUS, MINUS, PCT_PLUS, PCT_MINUS"
	}
	if r.Amount == nil || r.Amount.IsNegative() {
		return pricing.Rule{}, "amount must be zero or positive"
	}
	if op == pricing.OpPctMinus && r.Amount.GreaterThan(decimal.NewFromInt(100)) {
		return pricing.Rule{}, "PCT_MINUS amount cannot exceed 100"
	}
	from, ok := parseBound(r.ValidFrom, false)
	if !ok {
		return pricing.Rule{}, "validFrom must be a date or RFC 3339 time"
	}
	to, ok := parseBound(r.ValidTo, true)
	if !ok {
		return pricing.Rule{}, "validTo must be a date or RFC 3339 time"
	}
	if from != nil && to != nil && to.Before(*from) {
		return pricing.Rule{}, "validTo is before validFrom"
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return pricing.Rule{
		ScreenID:  r.ScreenID,
		Kind:      pricing.ParseKind(r.Kind),
		Op:        op,
		Amount:    *r.Amount,
		Priority:  r.Priority,
		ValidFrom: from,
		ValidTo:   to,
		Enabled:   enabled,
	}, ""
}

// List handles GET ...pricing?screenId=.  Without screenId it returns the
// global rules.
func (h *PricingHandler) List(c echo.Context) error {
	screenID, ok := queryID(c, "screenId")
	if !ok {
		return badRequest(c, "invalid screenId")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	var (
		rules []pricing.Rule
		err   error
	)
	if screenID != nil {
		rules, err = h.Rules.ListByScreen(ctx, *screenID)
	} else {
		rules, err = h.Rules.ListGlobal(ctx)
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if rules == nil {
		rules = []pricing.Rule{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": rules})
}

// Create handles POST /v1/admin/pricing.
func (h *PricingHandler) Create(c echo.Context) error {
	var req ruleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rule, msg := req.toRule()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Rules.Create(ctx, &rule); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, rule)
}

// Update handles PUT /v1/admin/pricing/:id.  The screen scope of a rule is
// fixed at creation.
func (h *PricingHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid rule id")
	}
	var req ruleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rule, msg := req.toRule()
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	existing, err := h.Rules.GetByID(ctx, id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	rule.ID = id
	rule.ScreenID = existing.ScreenID
	rule.CreatedAt = existing.CreatedAt
	if err := h.Rules.Update(ctx, &rule); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, rule)
}

// Delete handles DELETE /v1/admin/pricing/:id.
func (h *PricingHandler) Delete(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid rule id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Rules.Delete(ctx, id); err != nil {
		return respondError(c, h.Log, err)
	}
	h.changed(ctx)
	return c.NoContent(http.StatusNoContent)
}
