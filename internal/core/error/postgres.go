package errx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// WrapPostgres maps pgx errors; a missing row becomes ErrNotFound so callers
// can tell "absent" apart from "database broken".
func WrapPostgres(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return New(errors.Join(ErrNotFound, err), http.StatusNotFound, "record not found")
	}

	return New(err, http.StatusBadGateway, PostgresErrorMessage)
}
