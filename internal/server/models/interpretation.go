package models

// Interpretation is a uniquely-keyed explanation record owned by its creator.
// Key is typically a short emoji string; CreatedBy never changes after insert.
type Interpretation struct {
	ID          int64
	Key         string
	Explanation string
	CreatedBy   int64
}
