// Package registry holds the tenant and service identities that every
// other billing context checks existence and ownership against.
package registry

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// MaxNameLength bounds tenant and service names
const MaxNameLength = 255

// Tenant is a billable customer of the platform
type Tenant struct {
	shared.BaseEntity
	Name          string
	BillingEmail  string
	Currency      string
	PricingPlanID *uuid.UUID
}

// NewTenant creates a tenant after validating its name, contact email and currency
func NewTenant(name, billingEmail, currency string, now time.Time) (*Tenant, error) {
	name, err := normalizeName("tenant", name)
	if err != nil {
		return nil, err
	}
	billingEmail = strings.TrimSpace(billingEmail)
	if billingEmail != "" {
		if _, err := mail.ParseAddress(billingEmail); err != nil {
			return nil, shared.NewValidationError("billing_email %q is not a valid address", billingEmail)
		}
	}
	code, ok := valueobject.NormalizeCurrency(currency)
	if !ok {
		return nil, shared.NewValidationError("currency %q is not an ISO 4217 code", currency)
	}

	return &Tenant{
		BaseEntity:   shared.NewBaseEntity(now),
		Name:         name,
		BillingEmail: billingEmail,
		Currency:     code,
	}, nil
}

// Rename changes the display name; the identity never changes
func (t *Tenant) Rename(name string, now time.Time) error {
	name, err := normalizeName("tenant", name)
	if err != nil {
		return err
	}
	t.Name = name
	t.Touch(now)
	return nil
}

// AssignPricingPlan points the tenant at a pricing plan
func (t *Tenant) AssignPricingPlan(planID uuid.UUID, now time.Time) {
	t.PricingPlanID = &planID
	t.Touch(now)
}

func normalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.NewValidationError("%s name is required", kind)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", shared.NewValidationError("%s name must be at most %d characters", kind, MaxNameLength)
	}
	return name, nil
}
