package services

import (
	"github.com/google/uuid"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
)

// checkID rejects ids that cannot name a stored row. Documents and
// signatures are keyed by uuid, so a malformed id is simply not found.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return nil
}
