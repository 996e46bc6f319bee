package stream

// EventType is the name of a push event
type EventType string

const (
	EventStart EventType = "start"
	EventChunk EventType = "chunk"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// DoneSentinel is the payload of the done event
const DoneSentinel = "[DONE]"

// Event is one message on a stream session's channel
type Event struct {
	Type EventType `json:"event"`
	Data string    `json:"data"`
}

// Terminal reports whether no events can follow e
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func startEvent() Event            { return Event{Type: EventStart} }
func chunkEvent(text string) Event { return Event{Type: EventChunk, Data: text} }
func doneEvent() Event             { return Event{Type: EventDone, Data: DoneSentinel} }
func errorEvent(msg string) Event  { return Event{Type: EventError, Data: msg} }
