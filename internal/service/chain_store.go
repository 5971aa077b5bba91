package service

import (
	"context"

	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
)

// ChainStore writes every record to each store in order and reads from the
// first store that has it. A write failure stops the chain.
type ChainStore []RecordStore

// Create implements RecordStore
func (c ChainStore) Create(ctx context.Context, rec *output.Record) error {
	for _, store := range c {
		if err := store.Create(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// GetByID implements RecordStore
func (c ChainStore) GetByID(ctx context.Context, runID string) (*output.Record, error) {
	var lastErr error = errors.NotFound("reconciliation", runID)
	for _, store := range c {
		rec, err := store.GetByID(ctx, runID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
