package ingestion

// State is the stage a job has reached inside a Worker.
type State int

const (
	StateReceived State = iota
	StateExtracting
	StateChunking
	StateEmbedding
	StateStoring
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateReceived:   "received",
	StateExtracting: "extracting",
	StateChunking:   "chunking",
	StateEmbedding:  "embedding",
	StateStoring:    "storing",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
