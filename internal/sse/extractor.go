package sse

import (
	"encoding/json"
	"strings"

	"hfllm/internal/models"

	"github.com/sirupsen/logrus"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// Kind classifies a frame.
type Kind int

const (
	KindIgnore Kind = iota
	KindFragment
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "fragment"
	case KindDone:
		return "done"
	default:
		return "ignore"
	}
}

// Delta is the result of extracting one frame.
type Delta struct {
	Kind Kind
	Text string
}

// Extract classifies a frame and returns its text fragment, if any.
// Malformed payloads are never an error; they are reported as KindIgnore.
func Extract(frame string) Delta {
	if !strings.HasPrefix(frame, dataPrefix) {
		return Delta{Kind: KindIgnore}
	}
	payload := strings.TrimPrefix(frame[len(dataPrefix):], " ")

	if strings.TrimSpace(payload) == doneMarker {
		return Delta{Kind: KindDone}
	}

	var chunk models.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		logrus.WithError(err).Debug("Ignoring frame with unparsable payload")
		return Delta{Kind: KindIgnore}
	}
	if len(chunk.Choices) == 0 {
		return Delta{Kind: KindIgnore}
	}

	content := chunk.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return Delta{Kind: KindIgnore}
	}
	return Delta{Kind: KindFragment, Text: *content}
}
