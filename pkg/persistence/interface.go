package persistence

// IRunStore persists the outcome of clearing runs so that a submitted proof request can be
// traced back to the exact batch and results it committed to. It never stores live orders.
// All implementations must be thread-safe.
type IRunStore interface {
	// Run Records

	// SaveRun persists a run record keyed by its ID.
	// Overwrites any existing record with the same ID.
	SaveRun(run *RunRecord) error

	// LoadRun retrieves a run record by ID.
	// Returns nil if the run doesn't exist, error only on storage failure.
	LoadRun(id string) (*RunRecord, error)

	// ListRuns returns all run records sorted by creation time, then ID.
	// Returns empty slice if no runs exist, error only on storage failure.
	ListRuns() ([]*RunRecord, error)

	// DeleteRun removes a run record and clears every latest pointer that names it.
	// Idempotent - returns nil if the run doesn't exist.
	DeleteRun(id string) error

	// Latest Run Tracking

	// SetLatestRun records which run is the current one for an auction.
	SetLatestRun(auctionLabel string, id string) error

	// GetLatestRun returns the ID of the current run for an auction.
	// Returns "" if none is set.
	GetLatestRun(auctionLabel string) (string, error)

	// Lifecycle Management

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	HealthCheck() error
}
