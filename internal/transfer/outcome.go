package transfer

// Status classifies how a task ended. The distinction between per-item and
// whole-run failure is carried in the value itself rather than in error
// types, so callers can route on it explicitly.
type Status int

const (
	// StatusMigrated means the image and metadata were stored and the id
	// committed to the ledger.
	StatusMigrated Status = iota

	// StatusAlreadyDone means the ledger already contained the id; no side
	// effects were performed.
	StatusAlreadyDone

	// StatusInvalid means the item's source URL can never be fetched. The
	// id was committed to the ledger so future runs do not retry it forever.
	StatusInvalid

	// StatusFailed means the item was not completed this run. It stays out
	// of the ledger and a future run will retry it.
	StatusFailed

	// StatusFatal means a non-item-specific precondition failed (invalid
	// credentials). The whole run must stop.
	StatusFatal
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusMigrated:
		return "migrated"
	case StatusAlreadyDone:
		return "already-done"
	case StatusInvalid:
		return "invalid"
	case StatusFailed:
		return "failed"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of running one task.
type Outcome struct {
	ID     string
	Status Status

	// Err carries the reason for Invalid, Failed, and Fatal outcomes.
	Err error
}
