package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"hfllm/internal/llm"
	"hfllm/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	chatBanner    = "Starting chat mode. Type 'exit' to end the conversation."
	clearedNotice = "Chat history cleared. Starting a new conversation."
	inputPrompt   = "You: "
)

// State is the position of a Session in its request loop.
type State int

const (
	AwaitingInput State = iota
	RequestInFlight
	Done
)

func (s State) String() string {
	switch s {
	case RequestInFlight:
		return "request-in-flight"
	case Done:
		return "done"
	default:
		return "awaiting-input"
	}
}

// Command is a recognised control input.
type Command int

const (
	CmdMessage Command = iota
	CmdEmpty
	CmdExit
	CmdClear
)

// ParseInput classifies one trimmed line of user input. Control words are
// case-insensitive.
func ParseInput(line string) Command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return CmdEmpty
	case "exit":
		return CmdExit
	case "clear":
		return CmdClear
	default:
		return CmdMessage
	}
}

// Output is where the session prints replies and chat chrome.
type Output interface {
	io.Writer
	Prompt(label string)
	Notice(msg string)
	Println(msg string)
}

// Session drives the chat loop and owns the conversation history.
type Session struct {
	id          string
	client      llm.Client
	in          *bufio.Scanner
	out         Output
	clearScreen func() error
	conv        Conversation
	state       State
	cycles      int
	log         *logrus.Entry
}

// New creates a Session. clearScreen may be nil.
func New(client llm.Client, in io.Reader, out Output, clearScreen func() error) *Session {
	id := uuid.NewString()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Session{
		id:          id,
		client:      client,
		in:          scanner,
		out:         out,
		clearScreen: clearScreen,
		log:         logrus.WithField("session", id),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Conversation returns a copy of the history.
func (s *Session) Conversation() []models.Message {
	return s.conv.Messages()
}

// RunOnce sends a single prompt and returns when its reply has been streamed.
func (s *Session) RunOnce(ctx context.Context, prompt string) error {
	defer func() { s.state = Done }()

	s.conv.Add(models.RoleUser, prompt)
	return s.cycle(ctx)
}

// RunInteractive reads user input line by line until "exit" or end of input.
// A failed request cycle ends the session with its error.
func (s *Session) RunInteractive(ctx context.Context) error {
	defer func() { s.state = Done }()

	s.out.Println(chatBanner)
	for {
		s.state = AwaitingInput
		s.out.Prompt(inputPrompt)

		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			s.out.Println("")
			s.log.Debug("Input closed, ending chat")
			return nil
		}
		line := strings.TrimSpace(s.in.Text())

		switch ParseInput(line) {
		case CmdExit:
			s.log.Debug("Exit requested")
			return nil
		case CmdClear:
			s.conv.Clear()
			if s.clearScreen != nil {
				if err := s.clearScreen(); err != nil {
					s.log.WithError(err).Warn("Failed to clear the terminal")
				}
			}
			s.out.Notice(clearedNotice)
			continue
		case CmdEmpty:
			continue
		}

		before := s.conv.Len()
		s.conv.Add(models.RoleUser, line)
		if err := s.cycle(ctx); err != nil {
			s.conv.truncate(before)
			return err
		}
	}
}

// cycle sends the whole history and records the reply as an assistant turn.
func (s *Session) cycle(ctx context.Context) error {
	s.cycles++
	s.state = RequestInFlight
	log := s.log.WithFields(logrus.Fields{
		"cycle":    s.cycles,
		"messages": s.conv.Len(),
	})
	log.Debug("Starting request cycle")

	reply, err := s.client.StreamRequest(ctx, s.conv.Messages(), s.out)
	if err != nil {
		log.WithError(err).Info("Request cycle failed")
		return fmt.Errorf("request failed: %w", err)
	}

	s.conv.Add(models.RoleAssistant, reply)
	s.state = AwaitingInput
	log.WithField("reply_bytes", len(reply)).Debug("Request cycle complete")
	return nil
}
