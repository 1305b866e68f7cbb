package domain

// Phase is the user-facing lifecycle position derived from an ImageState.
type Phase string

const (
	PhaseEmpty   Phase = "empty"
	PhaseReady   Phase = "ready"
	PhaseEditing Phase = "editing"
	PhaseEdited  Phase = "edited"
	PhaseFailed  Phase = "failed"
)

// ImageState is the four-field view state of one editing session. Empty
// strings mean absent. The record is replaced wholesale on every transition.
type ImageState struct {
	Original  string `json:"original,omitempty"`
	Edited    string `json:"edited,omitempty"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// Phase derives the lifecycle position. An error set while no edit is
// running counts as failed even without an original image, which is how a
// rejected upload surfaces.
func (s ImageState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseEditing
	case s.Error != "":
		return PhaseFailed
	case s.Original == "":
		return PhaseEmpty
	case s.Edited != "":
		return PhaseEdited
	default:
		return PhaseReady
	}
}

// Snapshot is a consistent read of a controller.
type Snapshot struct {
	State      ImageState `json:"state"`
	Prompt     string     `json:"prompt"`
	Phase      Phase      `json:"phase"`
	Generation uint64     `json:"generation"`
}
