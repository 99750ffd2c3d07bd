package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEventWireFormat(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		want  string
	}{
		{
			name:  "citation",
			event: CitationEvent(Citation{Source: "a.pdf", Page: 2, Text: "X is great..."}),
			want:  `{"type":"citation","payload":{"source":"a.pdf","page":2,"text":"X is great..."}}`,
		},
		{"token", TokenEvent("Hel"), `{"type":"token","payload":"Hel"}`},
		{"error", ErrorEvent("backend down"), `{"type":"error","payload":"backend down"}`},
		{"done", DoneEvent(), `{"type":"done","payload":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var decoded StreamEvent
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.event, decoded)
		})
	}
}

func TestIngestionJobPayload(t *testing.T) {
	job := IngestionJob{DocumentID: "d1", Filename: "notes.txt", FilePath: "uploads/d1_notes.txt"}
	data, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"document_id":"d1","filename":"notes.txt","file_path":"uploads/d1_notes.txt"}`, string(data))
}
