package llm

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"hfllm/config"
	"hfllm/internal/models"
	"hfllm/internal/stream"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"
)

const ollamaSystemMessage = "You are a helpful assistant. Continue the conversation as the assistant."

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	client          *ollama.Ollama
	model           string
	maxPromptLength int
}

// NewOllamaClient creates a new client for Ollama. model overrides cfg.Model when set.
func NewOllamaClient(cfg config.OllamaConfig, model string) (*OllamaClient, error) {
	ollamaURL, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	if model == "" {
		model = cfg.Model
	}

	client := ollama.New(*ollamaURL)

	logrus.Debugf("Using Ollama client for host: %s", cfg.Host)
	logrus.Debugf("Using Ollama model: %s", model)

	return &OllamaClient{
		client:          client,
		model:           model,
		maxPromptLength: cfg.MaxPromptLength,
	}, nil
}

// StreamRequest renders the conversation into a single prompt and passes the
// generated reply to out as one fragment.
func (oc *OllamaClient) StreamRequest(ctx context.Context, history []models.Message, out io.Writer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prompt := truncatePrompt(renderTranscript(history), oc.maxPromptLength)
	logrus.Debugf("Sending prompt of %d characters to Ollama (max: %d)", len(prompt), oc.maxPromptLength)

	res, err := oc.client.Generate(
		oc.client.Generate.WithModel(oc.model),
		oc.client.Generate.WithSystem(ollamaSystemMessage),
		oc.client.Generate.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("error calling the Ollama Generate API: %w", err)
	}
	if !res.Done {
		return "", fmt.Errorf("ollama request did not complete")
	}

	acc := stream.NewAccumulator(out)
	if text := strings.TrimSpace(res.Response); text != "" {
		acc.Add(text)
	}
	return acc.Finish(), nil
}

// renderTranscript flattens the history into a role-labelled transcript ending
// with an open assistant turn.
func renderTranscript(history []models.Message) string {
	var sb strings.Builder
	for _, m := range history {
		switch m.Role {
		case models.RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(m.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Assistant:")
	return sb.String()
}

// truncatePrompt keeps the most recent max bytes of prompt on a rune boundary.
func truncatePrompt(prompt string, max int) string {
	if max <= 0 || len(prompt) <= max {
		return prompt
	}
	logrus.Warnf("Prompt is being truncated from %d to %d characters.", len(prompt), max)
	cut := len(prompt) - max
	for cut < len(prompt) && !utf8.RuneStart(prompt[cut]) {
		cut++
	}
	return prompt[cut:]
}
