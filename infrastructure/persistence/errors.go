package persistence

import (
	"errors"
	"fmt"

	"autopost/domain/errs"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrStoreUnavailable, op, err)
}

func isDuplicate(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
