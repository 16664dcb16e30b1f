package distributor

import "encoding/json"

type EventKind string

const (
	KindProgress EventKind = "progress"
	KindFinished EventKind = "finished"
	KindError    EventKind = "error"
	KindDone     EventKind = "done"
)

type Event struct {
	Kind     EventKind
	Client   string
	Progress int
	Overall  int
	Error    string
}

// Sink receives events in emission order. A non-nil error means the
// consumer is gone and distribution stops without emitting anything else.
type Sink func(Event) error

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindFinished:
		return json.Marshal(struct {
			Client   string `json:"client"`
			Progress int    `json:"progress"`
			Finished bool   `json:"finished"`
		}{e.Client, 100, true})
	case KindError:
		return json.Marshal(struct {
			Client string `json:"client"`
			Error  string `json:"error"`
		}{e.Client, e.Error})
	case KindDone:
		return json.Marshal(struct {
			Status string `json:"status"`
		}{"complete"})
	default:
		return json.Marshal(struct {
			Client   string `json:"client"`
			Progress int    `json:"progress"`
			Overall  int    `json:"overall"`
		}{e.Client, e.Progress, e.Overall})
	}
}

const (
	OutcomeDeployed = "deployed"
	OutcomeError    = "error"
)

type Outcome struct {
	Client string `json:"client"`
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}
