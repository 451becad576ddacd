package docstore

import (
	"errors"

	apperrors "lexportal-backend/pkg/errors"
)

// AsAppError maps a store error to the service error taxonomy. AppErrors
// (returned from Mutate callbacks) pass through unchanged.
func AsAppError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, ErrNotFound):
		return apperrors.NotFoundError(resource)
	case errors.Is(err, ErrAlreadyExists):
		return apperrors.ConflictError(resource + " already exists")
	}
	return apperrors.StoreError(err)
}
