package ui

// Status is the state of one file in a batch analysis.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusSkipped
	StatusError
)

// Event reports a status change for File. Findings is meaningful with
// StatusDone only.
type Event struct {
	File     string
	Status   Status
	Findings int
}

func (s Status) finished() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusError
}
