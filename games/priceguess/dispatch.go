package priceguess

import (
	"fmt"
)

// Audience selects which connections receive an Event.
type Audience int

const (
	Everyone Audience = iota
	Players
	GameMaster
	Single
)

func (a Audience) String() string {
	switch a {
	case Players:
		return "players"
	case GameMaster:
		return "gm"
	case Single:
		return "single"
	}
	return "everyone"
}

// Event is an outbound message. Only Type and Data go on the wire.
type Event struct {
	Audience Audience `json:"-"`
	To       string   `json:"-"`
	Type     string   `json:"type"`
	Data     any      `json:"data,omitempty"`
}

// Outbound event types.
const (
	EventWelcome         = "welcome"
	EventRosterUpdate    = "roster_update"
	EventGMStatus        = "gm_status"
	EventSetSelected     = "set_selected"
	EventItemShown       = "item_shown"
	EventGuessAccepted   = "guess_accepted"
	EventGuessProgress   = "guess_progress"
	EventGuessesRevealed = "guesses_revealed"
	EventAnswerRevealed  = "answer_revealed"
	EventScoreboard      = "scoreboard"
	EventLobby           = "lobby"
	EventGMState         = "gm_state"
	EventError           = "error"
)

type WelcomeData struct {
	Role     Role         `json:"role"`
	PlayerID string       `json:"player_id,omitempty"`
	Name     string       `json:"name,omitempty"`
	Rejoined bool         `json:"rejoined"`
	State    any          `json:"state"`
	Sets     []SetSummary `json:"sets,omitempty"`
}

type RosterData struct {
	Roster []RosterEntry `json:"roster"`
}

type GMStatusData struct {
	Connected bool `json:"connected"`
}

type SetSelectedData struct {
	Set   SetSummary  `json:"set"`
	State PublicState `json:"state"`
}

type ItemShownData struct {
	Item  ItemView    `json:"item"`
	State PublicState `json:"state"`
}

type GuessAcceptedData struct {
	ItemID string  `json:"item_id"`
	Value  float64 `json:"value"`
}

type GuessProgressData struct {
	Count        int         `json:"count"`
	Players      int         `json:"players"`
	GuessesSoFar []GuessView `json:"guesses_so_far"`
}

type GuessesRevealedData struct {
	Guesses map[string]float64 `json:"guesses"`
	State   PublicState        `json:"state"`
}

type AnswerRevealedData struct {
	ActualPrice float64        `json:"actual_price"`
	Result      RoundResult    `json:"result"`
	Deltas      map[string]int `json:"deltas"`
	State       PublicState    `json:"state"`
}

type ScoreboardData struct {
	Entries []ScoreEntry `json:"entries"`
	State   PublicState  `json:"state"`
}

type LobbyData struct {
	State PublicState `json:"state"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SetSource supplies item sets to the dispatcher.
type SetSource interface {
	Get(id int64) (*ItemSet, error)
	List() []SetSummary
}

// Dispatcher applies inbound messages to a Session and describes the
// results as events. It holds no session state of its own.
type Dispatcher struct {
	sets SetSource
	logf func(format string, args ...any)
}

// NewDispatcher returns a dispatcher reading sets from sets. logf may be nil.
func NewDispatcher(sets SetSource, logf func(format string, args ...any)) *Dispatcher {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &Dispatcher{
		sets: sets,
		logf: logf,
	}
}

// ErrorEvent reports err to a single connection.
func ErrorEvent(to string, err error) Event {
	return Event{
		Audience: Single,
		To:       to,
		Type:     EventError,
		Data: ErrorData{
			Code:    ErrorCode(err),
			Message: err.Error(),
		},
	}
}

func gmStateEvent(s *Session) Event {
	return Event{Audience: GameMaster, Type: EventGMState, Data: s.GMState()}
}

func rosterEvent(s *Session) Event {
	return Event{Audience: Everyone, Type: EventRosterUpdate, Data: RosterData{Roster: s.rosterView()}}
}

// Handle applies msg from connection from to s. A rejected message yields
// a single error event and leaves s untouched.
func (d *Dispatcher) Handle(s *Session, from string, msg Inbound) []Event {
	if msg == nil {
		return []Event{ErrorEvent(from, fmt.Errorf("%w: empty message", ErrValidation))}
	}

	var (
		events []Event
		err    error
	)

	switch m := msg.(type) {
	case Connect:
		events = d.connect(s, from)
	case Disconnect:
		events = d.disconnect(s, from)
	case Join:
		events, err = d.join(s, from, m)
	case SubmitGuess:
		events, err = d.submitGuess(s, from, m)
	case SelectSet, StartGame, RevealGuesses, RevealAnswer, NextItem, ResetSession:
		if !s.IsGM(from) {
			err = fmt.Errorf("%w: only the game master can %s", ErrInvalidTransition, msg.Kind())
			break
		}
		events, err = d.control(s, msg)
	default:
		err = fmt.Errorf("%w: unsupported message %T", ErrValidation, msg)
	}

	if err != nil {
		d.logf("GAMES: Rejected %s from %s: %v", msg.Kind(), from, err)
		return []Event{ErrorEvent(from, err)}
	}

	return events
}

func (d *Dispatcher) welcome(s *Session, from string, rejoined bool) Event {
	data := WelcomeData{
		Role:     s.RoleOf(from),
		Rejoined: rejoined,
		State:    s.PublicState(),
	}

	switch data.Role {
	case RoleGM:
		data.State = s.GMState()
		data.Sets = d.sets.List()
	case RolePlayer:
		p, _ := s.PlayerByConn(from)
		data.PlayerID = p.ID
		data.Name = p.Name
	}

	return Event{Audience: Single, To: from, Type: EventWelcome, Data: data}
}

func (d *Dispatcher) connect(s *Session, from string) []Event {
	switch s.Resume(from) {
	case RoleGM:
		return []Event{
			d.welcome(s, from, true),
			{Audience: Players, Type: EventGMStatus, Data: GMStatusData{Connected: true}},
		}
	case RolePlayer:
		return []Event{d.welcome(s, from, true), rosterEvent(s)}
	}
	return []Event{d.welcome(s, from, false)}
}

func (d *Dispatcher) disconnect(s *Session, from string) []Event {
	switch s.Disconnect(from) {
	case RoleGM:
		d.logf("GAMES: Game master %s disconnected", from)
		return []Event{{Audience: Players, Type: EventGMStatus, Data: GMStatusData{Connected: false}}}
	case RolePlayer:
		return []Event{rosterEvent(s)}
	}
	return nil
}

func (d *Dispatcher) join(s *Session, from string, m Join) ([]Event, error) {
	if m.Role == RoleGM {
		if err := s.ClaimGM(from); err != nil {
			return nil, err
		}
		d.logf("GAMES: %s claimed game master", from)
		return []Event{
			d.welcome(s, from, false),
			{Audience: Players, Type: EventGMStatus, Data: GMStatusData{Connected: true}},
		}, nil
	}

	p, rejoined, err := s.Join(from, m.Name)
	if err != nil {
		return nil, err
	}
	if rejoined {
		d.logf("GAMES: Player %q rejoined", p.Name)
	} else {
		d.logf("GAMES: Player %q joined", p.Name)
	}

	return []Event{d.welcome(s, from, rejoined), rosterEvent(s), gmStateEvent(s)}, nil
}

func (d *Dispatcher) submitGuess(s *Session, from string, m SubmitGuess) ([]Event, error) {
	p, ok := s.PlayerByConn(from)
	if !ok {
		return nil, fmt.Errorf("%w: join as a player before guessing", ErrNotFound)
	}

	g, err := s.SubmitGuess(p.ID, m.Value)
	if err != nil {
		return nil, err
	}

	st := s.GMState()

	return []Event{
		{Audience: Single, To: from, Type: EventGuessAccepted, Data: GuessAcceptedData{ItemID: g.ItemID, Value: g.Value}},
		{Audience: GameMaster, Type: EventGuessProgress, Data: GuessProgressData{
			Count:        st.GuessCount,
			Players:      len(st.Roster),
			GuessesSoFar: st.GuessesSoFar,
		}},
	}, nil
}

// control runs a game master action. Each successful transition yields one
// public event followed by the game master's private view.
func (d *Dispatcher) control(s *Session, msg Inbound) ([]Event, error) {
	var public Event

	switch m := msg.(type) {
	case SelectSet:
		set, err := d.sets.Get(m.SetID)
		if err != nil {
			return nil, err
		}
		if err := s.SelectSet(set); err != nil {
			return nil, err
		}
		d.logf("GAMES: Selected set %d (%s)", set.ID, set.Name)
		public = Event{Type: EventSetSelected, Data: SetSelectedData{Set: set.Summary(), State: s.PublicState()}}

	case StartGame:
		item, err := s.Start()
		if err != nil {
			return nil, err
		}
		public = Event{Type: EventItemShown, Data: ItemShownData{Item: *s.itemView(item), State: s.PublicState()}}

	case RevealGuesses:
		guesses, err := s.RevealGuesses()
		if err != nil {
			return nil, err
		}
		byPlayer := make(map[string]float64, len(guesses))
		for _, g := range guesses {
			byPlayer[g.PlayerID] = g.Value
		}
		public = Event{Type: EventGuessesRevealed, Data: GuessesRevealedData{Guesses: byPlayer, State: s.PublicState()}}

	case RevealAnswer:
		result, err := s.RevealAnswer()
		if err != nil {
			return nil, err
		}
		deltas := make(map[string]int, len(result.Entries))
		for _, e := range result.Entries {
			deltas[e.PlayerID] = e.Score
		}
		d.logf("GAMES: Revealed %s at %.2f with %d guesses", result.ItemName, result.ActualPrice, len(result.Entries))
		public = Event{Type: EventAnswerRevealed, Data: AnswerRevealedData{
			ActualPrice: result.ActualPrice,
			Result:      result,
			Deltas:      deltas,
			State:       s.PublicState(),
		}}

	case NextItem:
		item, done, err := s.NextItem()
		if err != nil {
			return nil, err
		}
		if done {
			public = Event{Type: EventScoreboard, Data: ScoreboardData{Entries: s.Scoreboard(), State: s.PublicState()}}
			break
		}
		public = Event{Type: EventItemShown, Data: ItemShownData{Item: *s.itemView(item), State: s.PublicState()}}

	case ResetSession:
		if err := s.Reset(); err != nil {
			return nil, err
		}
		public = Event{Type: EventLobby, Data: LobbyData{State: s.PublicState()}}

	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrValidation, msg)
	}

	public.Audience = Everyone

	return []Event{public, gmStateEvent(s)}, nil
}

// Recipients resolves an event's audience to client ids, given the ids of
// every open connection.
func Recipients(s *Session, ev Event, open []string) []string {
	switch ev.Audience {
	case Everyone:
		return open
	case Single:
		for _, id := range open {
			if id == ev.To {
				return []string{id}
			}
		}
		return nil
	}

	want := make(map[string]bool)
	switch ev.Audience {
	case Players:
		for _, id := range s.PlayerConns() {
			want[id] = true
		}
	case GameMaster:
		if s.GMConnected() {
			want[s.GMConn()] = true
		}
	}

	var out []string
	for _, id := range open {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}
