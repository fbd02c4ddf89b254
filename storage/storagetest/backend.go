// Package storagetest provides storage backends for exercising failure
// handling in store tests.
package storagetest

import (
	"context"
	"errors"
)

// ErrBackendDown is returned by every FailingBackend operation.
var ErrBackendDown = errors.New("storage backend unavailable")

// FailingBackend fails every operation. Stores built over it must still
// apply mutations in memory; persistence is best-effort by contract.
type FailingBackend struct{}

func (FailingBackend) Load(context.Context, string) ([]byte, error) {
	return nil, ErrBackendDown
}

func (FailingBackend) Store(context.Context, string, []byte) error {
	return ErrBackendDown
}

func (FailingBackend) Delete(context.Context, string) error {
	return ErrBackendDown
}
