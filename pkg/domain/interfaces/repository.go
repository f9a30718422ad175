package interfaces

// Repository defines the interface for data persistence. It exclusively
// owns persisted session and observation state; everything held elsewhere
// is transient and rebuildable from here after a restart.
type Repository interface {
	Sessions() SessionRepository
	Observations() ObservationRepository

	// Close releases the underlying storage handle
	Close() error
}
