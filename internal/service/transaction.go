package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/coop-registration-api/pkg/database"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn database.TxFunc) error
}

// lookupError maps a repository read failure to NotFound or Internal.
func lookupError(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
}

// passThrough keeps typed errors raised inside a transaction and wraps anything else.
func passThrough(err error, failure string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, failure)
}
