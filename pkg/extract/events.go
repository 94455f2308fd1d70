package extract

import "encoding/json"

// EventKind classifies the recognized SSE payload shapes. Anything else is
// KindUnrecognized and ignored without failing the stream.
type EventKind int

const (
	// KindUnrecognized covers payloads with no usage-relevant fields,
	// including malformed JSON.
	KindUnrecognized EventKind = iota

	// KindMessageStart carries the message identifier and input token count
	// nested under message.usage.
	KindMessageStart

	// KindUsageDelta carries an output token count under a top-level usage
	// field.
	KindUsageDelta

	// KindTerminal is the message_stop marker: the snapshot is committed
	// when this is observed.
	KindTerminal
)

// Event is one parsed usage-relevant SSE payload.
type Event struct {
	Kind         EventKind
	MessageID    string
	InputTokens  int
	OutputTokens int
}

// terminalEventType is the upstream's end-of-message marker.
const terminalEventType = "message_stop"

// ssePayload mirrors only the fields the extractor reads. Pointer fields
// distinguish "absent" from "zero".
type ssePayload struct {
	Type    string `json:"type"`
	Message *struct {
		ID    string `json:"id"`
		Usage *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// parseEvent classifies one data-line payload. Malformed JSON yields
// KindUnrecognized; it is never an error.
func parseEvent(data []byte) Event {
	var p ssePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{Kind: KindUnrecognized}
	}

	if p.Type == terminalEventType {
		return Event{Kind: KindTerminal}
	}

	if p.Message != nil {
		ev := Event{Kind: KindMessageStart, MessageID: p.Message.ID}
		if p.Message.Usage != nil {
			ev.InputTokens = p.Message.Usage.InputTokens
		}
		return ev
	}

	if p.Usage != nil {
		return Event{Kind: KindUsageDelta, OutputTokens: p.Usage.OutputTokens}
	}

	return Event{Kind: KindUnrecognized}
}
