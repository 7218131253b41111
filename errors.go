package art

import "errors"

var (
	// ErrDuplicateKey is returned by Insert when the key already exists and
	// the call did not request an upsert.
	ErrDuplicateKey = errors.New("art: key already exists")
	// ErrNotFound reports an absent key. No tree operation currently returns
	// it: Get and Remove report absence through their boolean result.
	ErrNotFound = errors.New("art: key not found")
	// ErrConflict names an optimistic concurrency conflict. The OLC
	// variant's operations retry internally until they succeed and never
	// return it.
	ErrConflict = errors.New("art: optimistic concurrency conflict, retry")
)
