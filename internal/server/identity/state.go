package identity

// State records which persistence step a request's identity needs.
type State int

const (
	// Unchanged: nothing to persist.
	Unchanged State = iota
	// Created: Remember issued a fresh token.
	Created
	// Updated: Refresh asked to re-save the loaded record.
	Updated
	// Deleted: Forget asked to drop the stored record.
	Deleted
)

func (s State) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}
