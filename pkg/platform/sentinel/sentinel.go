// Package sentinel holds the storage facts stores report. Services translate
// them into coded domain errors; validation failures never use these.
package sentinel

import "errors"

var (
	// ErrNotFound: no investor, wallet link or role grant under the key.
	ErrNotFound = errors.New("not found")
	// ErrConflict: the key is already taken, e.g. a duplicate investor id.
	ErrConflict = errors.New("conflict")
)
