package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	ierr "github.com/saasinvoice/billing/internal/errors"
	"github.com/saasinvoice/billing/internal/postgres"
)

// requireRow turns an update that touched nothing into ErrNotFound
func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Failed to update %s", entity).
			Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return ierr.NewError(fmt.Sprintf("%s not found", entity)).
			WithHintf("%s not found", entity).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// rowsChanged reports whether a conditional write matched a row
func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to read affected rows").
			Mark(ierr.ErrDatabase)
	}
	return n > 0, nil
}

// conflictOrMissing distinguishes a lost status race from a missing row
// after a compare-and-set update on table.
func conflictOrMissing(ctx context.Context, db *postgres.DB, res sql.Result, table, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ierr.WithError(err).WithHintf("Failed to update %s", entity).Mark(ierr.ErrDatabase)
	}
	if n > 0 {
		return nil
	}

	idKey := entity + "_id"
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := db.GetQuerier(ctx).GetContext(ctx, &exists, query, id); err != nil {
		return postgres.TranslateError(err, entity, map[string]any{idKey: id})
	}
	title := strings.ToUpper(entity[:1]) + entity[1:]
	if !exists {
		return ierr.NewError(entity+" not found").
			WithHint(title+" not found").
			WithReportableDetails(map[string]any{idKey: id}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.NewError(entity+" status changed concurrently").
		WithHint(title+" was modified by another request").
		WithReportableDetails(map[string]any{idKey: id}).
		Mark(ierr.ErrVersionConflict)
}
