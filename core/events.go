// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "encoding/json"

// EventType tags a StreamEvent variant.
type EventType string

const (
	EventCitation EventType = "citation"
	EventToken    EventType = "token"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Citation references a retrieved chunk that grounds the answer.
type Citation struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// StreamEvent is one frame of a query response. Exactly one of the
// payload fields is meaningful, selected by Type.
type StreamEvent struct {
	Type     EventType
	Citation Citation
	Text     string
}

// CitationEvent returns a citation frame.
func CitationEvent(c Citation) StreamEvent {
	return StreamEvent{Type: EventCitation, Citation: c}
}

// TokenEvent returns a token frame carrying one text delta.
func TokenEvent(text string) StreamEvent {
	return StreamEvent{Type: EventToken, Text: text}
}

// ErrorEvent returns an error frame carrying a human-readable message.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Text: message}
}

// DoneEvent returns the terminal frame.
func DoneEvent() StreamEvent {
	return StreamEvent{Type: EventDone}
}

type wireEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the event as {"type": ..., "payload": ...}.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Type {
	case EventCitation:
		payload = e.Citation
	case EventToken, EventError:
		payload = e.Text
	case EventDone:
		payload = true
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Type: e.Type, Payload: raw})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = StreamEvent{Type: w.Type}
	switch w.Type {
	case EventCitation:
		return json.Unmarshal(w.Payload, &e.Citation)
	case EventToken, EventError:
		return json.Unmarshal(w.Payload, &e.Text)
	}
	return nil
}
