package shipper

import "encoding/json"

// Status is the terminal state of a publish run.
type Status string

// Run statuses.
const (
	// StatusSuccess means every attempted provider succeeded.
	StatusSuccess Status = "success"
	// StatusPartialFailure means at least one attempted provider failed.
	StatusPartialFailure Status = "partial_failure"
	// StatusSkipped means there was nothing to publish.
	StatusSkipped Status = "skipped"
)

// Outcome is the result of a publish run.
//
// Results always holds the per-provider results in selection order. When
// Encrypted is set the serialized form is the encrypted string alone.
type Outcome struct {
	Status  Status
	Release Release

	// Artifact is the published archive. Zero when the run was skipped.
	Artifact Artifact

	Results   []ProviderResult
	Encrypted string
}

// IsEncrypted reports whether the outcome serializes as an encrypted string.
func (o *Outcome) IsEncrypted() bool {
	return o.Encrypted != ""
}

// Failures returns the number of failed provider attempts.
func (o *Outcome) Failures() int {
	n := 0
	for _, r := range o.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// MarshalJSON renders the outcome as "[]" when skipped, as a JSON string
// when encrypted, and as the array of provider results otherwise.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Status == StatusSkipped:
		return []byte("[]"), nil
	case o.IsEncrypted():
		return json.Marshal(o.Encrypted)
	default:
		return marshalResults(o.Results)
	}
}

func marshalResults(results []ProviderResult) ([]byte, error) {
	if results == nil {
		results = []ProviderResult{}
	}
	return json.Marshal(results)
}
