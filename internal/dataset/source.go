// Package dataset loads the hourly, historical, forecast, and census datasets
// into typed domain records.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrDataUnavailable marks a dataset that could not be read or is malformed at
// the top level. It is fatal to the request that needed the dataset.
var ErrDataUnavailable = errors.New("dataset unavailable")

// UnavailableError names the dataset that failed and carries the cause.
// errors.Is(err, ErrDataUnavailable) reports true for it.
type UnavailableError struct {
	Dataset string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("dataset %s unavailable: %v", e.Dataset, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrDataUnavailable, e.Err}
}

// Source provides raw dataset bytes by name.
type Source interface {
	Open(ctx context.Context, name string) ([]byte, error)
}

// FileSource reads datasets from a directory.
type FileSource struct {
	Dir string
}

// Open reads the named file under Dir. Names cannot escape Dir.
func (s FileSource) Open(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, filepath.Clean(string(filepath.Separator)+name))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// unavailable wraps err for dataset unless it is a context cancellation, which
// callers treat as a superseded request rather than a data failure.
func unavailable(dataset string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnavailableError{Dataset: dataset, Err: err}
}
