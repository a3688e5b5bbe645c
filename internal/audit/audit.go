// Package audit records reminder state transitions for later inspection.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/mealtime/internal/models"
)

// Writer persists transition records.
type Writer interface {
	WriteTransition(action, inputsHash, outcome, reminderID, details string) (*models.Transition, error)
}

// Recorder writes transition records for an audit trail.
type Recorder struct {
	w Writer
}

// NewRecorder creates a new transition recorder.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w}
}

// Record writes an entry for a state-mutating action.
func (r *Recorder) Record(action string, inputs interface{}, outcome, reminderID, details string) error {
	_, err := r.w.WriteTransition(action, hashInputs(inputs), outcome, reminderID, details)
	return err
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
