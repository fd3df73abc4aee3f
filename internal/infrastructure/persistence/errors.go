package persistence

import (
	"context"
	"errors"

	"github.com/faasbill/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps storage failures onto the domain taxonomy.
// Domain errors pass through untouched; anything unrecognised is transient.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewConflictError("%s: record already exists", op).WithCause(err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return shared.NewTransientError(op, err)
	}
}

// notFound converts gorm.ErrRecordNotFound into a NotFound error for entity
func notFound(op, entity string, id any, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	return translateError(op, err)
}
