package cache

import (
	"context"
	"errors"
)

// failingStore simulates a persistence backend with a full quota: every
// write fails, reads find nothing.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("quota exceeded")
}

func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("quota exceeded")
}
