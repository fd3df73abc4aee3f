package billing

import (
	"time"

	"github.com/faasbill/backend/internal/domain/pricing"
	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/shared/valueobject"
	"github.com/faasbill/backend/internal/domain/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line item names, in the order they appear on a statement
const (
	ItemInvocations = "invocations"
	ItemCompute     = "compute"
	ItemColdStarts  = "cold_starts"
	ItemEgress      = "egress"
)

var million = decimal.NewFromInt(1_000_000)

// Period is a half-open billing range [Start, End)
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod validates and normalizes a billing range to UTC
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, shared.NewValidationError("start_time and end_time are required")
	}
	if !start.Before(end) {
		return Period{}, shared.NewValidationError("start_time must be before end_time")
	}
	return Period{Start: start.UTC(), End: end.UTC()}, nil
}

// Includes reports whether an aggregate belongs to the period by its window start
func (p Period) Includes(a usage.Aggregate) bool {
	return !a.WindowStart.Before(p.Start) && a.WindowStart.Before(p.End)
}

// LineItem prices one billable dimension. Amount is the billable part of
// Quantity after the free tier; Cost is Amount × Rate rounded to cents.
type LineItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	FreeTier decimal.Decimal `json:"free_tier"`
	Amount   decimal.Decimal `json:"amount"`
	Unit     string          `json:"unit"`
	Rate     decimal.Decimal `json:"rate"`
	Cost     decimal.Decimal `json:"cost"`
}

// Statement is a calculated, not yet persisted, bill
type Statement struct {
	TenantID       uuid.UUID
	Period         Period
	Currency       string
	PricingPlanID  uuid.UUID
	AggregateCount int
	TotalCost      decimal.Decimal
	LineItems      []LineItem
}

type totals struct {
	invocations int64
	memMBMs     int64
	coldStarts  int64
	egressBytes int64
}

// Calculate prices the closed aggregates of tenantID inside period.
// Aggregates outside the period, of other tenants, or still open are ignored.
// No billable aggregate yields a zero total and no line items.
func Calculate(tenantID uuid.UUID, plan *pricing.Plan, period Period, aggregates []usage.Aggregate) Statement {
	st := Statement{
		TenantID:      tenantID,
		Period:        period,
		Currency:      plan.Currency,
		PricingPlanID: plan.ID,
		TotalCost:     decimal.Zero,
		LineItems:     []LineItem{},
	}

	var sum totals
	for i := range aggregates {
		a := aggregates[i]
		if a.TenantID != tenantID || !a.IsClosed() || !period.Includes(a) {
			continue
		}
		st.AggregateCount++
		sum.invocations += a.Invocations
		sum.memMBMs += a.MemMBMs
		sum.coldStarts += a.ColdStarts
		sum.egressBytes += a.EgressBytes
	}
	if st.AggregateCount == 0 {
		return st
	}

	st.LineItems = append(st.LineItems,
		priceItem(ItemInvocations, "invocation",
			decimal.NewFromInt(sum.invocations),
			decimal.NewFromInt(plan.FreeTier.Invocations),
			plan.Rates.PerMillionInvocations.Div(million)),
		priceItem(ItemCompute, "GB-second",
			usage.GBSeconds(sum.memMBMs),
			plan.FreeTier.GBSeconds,
			plan.Rates.PerGBSecond),
		priceItem(ItemColdStarts, "cold_start",
			decimal.NewFromInt(sum.coldStarts),
			decimal.Zero,
			plan.Rates.PerColdStart),
	)
	if sum.egressBytes > 0 {
		st.LineItems = append(st.LineItems, priceItem(ItemEgress, "GB",
			usage.EgressGB(sum.egressBytes),
			plan.FreeTier.EgressGB,
			plan.Rates.PerGBEgress))
	}

	for _, item := range st.LineItems {
		st.TotalCost = st.TotalCost.Add(item.Cost)
	}
	return st
}

func priceItem(name, unit string, quantity, freeTier, rate decimal.Decimal) LineItem {
	free := decimal.Min(quantity, freeTier)
	amount := quantity.Sub(free)
	return LineItem{
		Name:     name,
		Quantity: quantity,
		FreeTier: free,
		Amount:   amount,
		Unit:     unit,
		Rate:     rate,
		Cost:     valueobject.RoundMoney(amount.Mul(rate)),
	}
}
