package model

// SaveStatus classifies the outcome of a dedup insert batch.
type SaveStatus string

// Save outcome statuses. Duplicates are reported, never treated as failure.
const (
	SaveAllNew       SaveStatus = "all_new"
	SaveAllDuplicate SaveStatus = "all_duplicate"
	SaveMixed        SaveStatus = "mixed"
)

// SaveOutcome summarizes a dedup insert: how many candidates were
// persisted, how many already existed, and which keys collided.
type SaveOutcome struct {
	Saved         int
	Duplicate     int
	Total         int
	DuplicateKeys []string
	Status        SaveStatus
}

// StatusFor derives the batch status from saved/duplicate counts.
func StatusFor(saved, duplicate int) SaveStatus {
	switch {
	case duplicate == 0:
		return SaveAllNew
	case saved == 0:
		return SaveAllDuplicate
	default:
		return SaveMixed
	}
}
