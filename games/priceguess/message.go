package priceguess

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Inbound is a message handled by the Dispatcher.
type Inbound interface {
	Kind() string
}

type (
	// Connect is raised by the transport when a connection opens.
	Connect struct{}

	// Disconnect is raised by the transport when a client's last
	// connection closes.
	Disconnect struct{}

	Join struct {
		Name string
		Role Role
	}

	SelectSet struct {
		SetID int64
	}

	StartGame struct{}

	SubmitGuess struct {
		Value float64
	}

	RevealGuesses struct{}

	RevealAnswer struct{}

	NextItem struct{}

	ResetSession struct{}
)

func (Connect) Kind() string       { return "connect" }
func (Disconnect) Kind() string    { return "disconnect" }
func (Join) Kind() string          { return "join" }
func (SelectSet) Kind() string     { return "select_set" }
func (StartGame) Kind() string     { return "start_game" }
func (SubmitGuess) Kind() string   { return "submit_guess" }
func (RevealGuesses) Kind() string { return "reveal_guesses" }
func (RevealAnswer) Kind() string  { return "reveal_answer" }
func (NextItem) Kind() string      { return "next_item" }
func (ResetSession) Kind() string  { return "reset_session" }

// ClientMessage is the wire form of every client message.
type ClientMessage struct {
	Type  string      `json:"type"`
	Name  string      `json:"name,omitempty"`  // join
	Role  string      `json:"role,omitempty"`  // join
	SetID json.Number `json:"set_id,omitempty"` // select_set
	Value json.Number `json:"value,omitempty"` // submit_guess
}

// ParseInbound decodes a client frame. Connect and Disconnect are never
// accepted from the wire.
func ParseInbound(data []byte) (Inbound, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed message", ErrValidation)
	}

	switch msg.Type {
	case "join":
		role, err := ParseRole(msg.Role)
		if err != nil {
			return nil, err
		}
		return Join{Name: msg.Name, Role: role}, nil

	case "select_set":
		id, err := strconv.ParseInt(strings.TrimSpace(msg.SetID.String()), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: set_id must be a positive integer", ErrValidation)
		}
		return SelectSet{SetID: id}, nil

	case "start_game":
		return StartGame{}, nil

	case "submit_guess":
		v, err := strconv.ParseFloat(strings.TrimSpace(msg.Value.String()), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: value must be a number", ErrValidation)
		}
		return SubmitGuess{Value: v}, nil

	case "reveal_guesses":
		return RevealGuesses{}, nil

	case "reveal_answer":
		return RevealAnswer{}, nil

	case "next_item":
		return NextItem{}, nil

	case "reset_session":
		return ResetSession{}, nil
	}

	return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, msg.Type)
}
