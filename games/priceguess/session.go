package priceguess

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Phase is the state of a Session.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseSetSelected
	PhaseItemActive
	PhaseGuessesRevealed
	PhaseAnswerRevealed
	PhaseScoreboard
)

var phaseNames = [...]string{
	"lobby",
	"set_selected",
	"item_active",
	"guesses_revealed",
	"answer_revealed",
	"scoreboard",
}

func (p Phase) String() string {
	if p < PhaseLobby || p > PhaseScoreboard {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: phase must be a string", ErrValidation)
	}
	for i, name := range phaseNames {
		if name == s {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown phase %q", ErrValidation, s)
}

// Role is the identity a connection holds within a session.
type Role int

const (
	RoleNone Role = iota
	RolePlayer
	RoleGM
)

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleGM:
		return "gm"
	}
	return "none"
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: role must be a string", ErrValidation)
	}
	if s == RoleNone.String() {
		*r = RoleNone
		return nil
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole defaults to RolePlayer when s is empty.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "player":
		return RolePlayer, nil
	case "gm", "gamemaster", "game_master":
		return RoleGM, nil
	}
	return RoleNone, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

const maxNameLength = 32

// Player is a roster entry. Entries survive disconnection so scores are kept.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`

	connID  string
	joinSeq int
}

// Guess is one player's price for the active item.
type Guess struct {
	PlayerID    string    `json:"player_id"`
	ItemID      string    `json:"item_id"`
	Value       float64   `json:"value"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ResultEntry is one player's outcome for an item.
type ResultEntry struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name"`
	Guess    float64 `json:"guess"`
	Score    int     `json:"score"`
	Total    int     `json:"total"`
	Rank     int     `json:"rank"`
}

// RoundResult is the finalized scoring record of one item.
type RoundResult struct {
	ItemID      string        `json:"item_id"`
	ItemName    string        `json:"item_name"`
	ActualPrice float64       `json:"actual_price"`
	Difficulty  Tier          `json:"difficulty"`
	Entries     []ResultEntry `json:"entries"`
}

func (r RoundResult) clone() RoundResult {
	r.Entries = slices.Clone(r.Entries)
	return r
}

// ScoreEntry is one line of the scoreboard.
type ScoreEntry struct {
	PlayerID  string `json:"player_id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Rank      int    `json:"rank"`
	Connected bool   `json:"connected"`
}

// Session is the authoritative state of one game. It is not safe for
// concurrent use; its owner serializes every call.
type Session struct {
	phase Phase
	set   *ItemSet
	index int

	players map[string]*Player
	byConn  map[string]string
	nextSeq int

	guesses map[string]Guess
	history []RoundResult

	gmConn      string
	gmConnected bool

	now   func() time.Time
	newID func() string
}

type Option func(*Session)

// WithClock sets the time source used for guess timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithIDs sets the generator used for player ids.
func WithIDs(newID func() string) Option {
	return func(s *Session) {
		s.newID = newID
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		phase:   PhaseLobby,
		players: make(map[string]*Player),
		byConn:  make(map[string]string),
		guesses: make(map[string]Guess),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Phase() Phase {
	return s.phase
}

func (s *Session) Set() *ItemSet {
	return s.set
}

func (s *Session) ItemIndex() int {
	return s.index
}

// CurrentItem returns the active item while a set is being played.
func (s *Session) CurrentItem() (Item, bool) {
	switch s.phase {
	case PhaseItemActive, PhaseGuessesRevealed, PhaseAnswerRevealed:
		return s.set.Item(s.index), true
	}
	return Item{}, false
}

func (s *Session) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// PlayerByConn returns the roster entry bound to a connection, if any.
func (s *Session) PlayerByConn(connID string) (Player, bool) {
	id, ok := s.byConn[connID]
	if !ok {
		return Player{}, false
	}
	return s.Player(id)
}

// RoleOf reports the identity held by a connection.
func (s *Session) RoleOf(connID string) Role {
	if connID != "" && connID == s.gmConn {
		return RoleGM
	}
	if _, ok := s.byConn[connID]; ok {
		return RolePlayer
	}
	return RoleNone
}

func (s *Session) IsGM(connID string) bool {
	return s.RoleOf(connID) == RoleGM
}

func (s *Session) GMConnected() bool {
	return s.gmConnected
}

// PlayerConns returns the connection ids of connected players.
func (s *Session) PlayerConns() []string {
	conns := make([]string, 0, len(s.players))
	for _, p := range s.orderedPlayers() {
		if p.Connected && p.connID != "" {
			conns = append(conns, p.connID)
		}
	}
	return conns
}

// GMConn returns the connection id of the game master, if claimed.
func (s *Session) GMConn() string {
	return s.gmConn
}

func (s *Session) orderedPlayers() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int {
		return a.joinSeq - b.joinSeq
	})
	return out
}

// Roster returns every player in join order.
func (s *Session) Roster() []Player {
	ordered := s.orderedPlayers()
	out := make([]Player, 0, len(ordered))
	for _, p := range ordered {
		out = append(out, *p)
	}
	return out
}

// Guesses returns the stored guesses for the active item in join order.
func (s *Session) Guesses() []Guess {
	out := make([]Guess, 0, len(s.guesses))
	for _, p := range s.orderedPlayers() {
		if g, ok := s.guesses[p.ID]; ok {
			out = append(out, g)
		}
	}
	return out
}

// History returns a copy of every round result so far.
func (s *Session) History() []RoundResult {
	out := make([]RoundResult, 0, len(s.history))
	for _, r := range s.history {
		out = append(out, r.clone())
	}
	return out
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: display name is longer than %d characters", ErrValidation, maxNameLength)
	}
	return name, nil
}

func (s *Session) findByName(name string) *Player {
	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// ClaimGM makes connID the game master. The first claim wins; the same
// connection id may reclaim the role after a reconnect.
func (s *Session) ClaimGM(connID string) error {
	if connID == "" {
		return fmt.Errorf("%w: missing connection id", ErrValidation)
	}
	if _, ok := s.byConn[connID]; ok {
		return fmt.Errorf("%w: connection already joined as a player", ErrInvalidTransition)
	}

	switch s.gmConn {
	case "", connID:
		s.gmConn = connID
		s.gmConnected = true
		return nil
	}

	return fmt.Errorf("%w: game master already claimed", ErrDuplicateIdentity)
}

// Join reconciles a join request with the roster. A disconnected entry with
// the same name is rebound to connID; otherwise a new entry is created.
// The returned bool reports whether an existing entry was reused.
func (s *Session) Join(connID, name string) (Player, bool, error) {
	if connID == "" {
		return Player{}, false, fmt.Errorf("%w: missing connection id", ErrValidation)
	}

	name, err := normalizeName(name)
	if err != nil {
		return Player{}, false, err
	}

	if connID == s.gmConn {
		return Player{}, false, fmt.Errorf("%w: the game master cannot join as a player", ErrInvalidTransition)
	}

	if id, ok := s.byConn[connID]; ok {
		p := s.players[id]
		if !strings.EqualFold(p.Name, name) {
			return Player{}, false, fmt.Errorf("%w: connection already joined as %q", ErrInvalidTransition, p.Name)
		}
		p.Connected = true
		return *p, true, nil
	}

	if p := s.findByName(name); p != nil {
		if p.Connected {
			return Player{}, false, fmt.Errorf("%w: name %q is already taken", ErrDuplicateIdentity, p.Name)
		}
		delete(s.byConn, p.connID)
		p.connID = connID
		p.Connected = true
		s.byConn[connID] = p.ID
		return *p, true, nil
	}

	if s.phase == PhaseScoreboard {
		return Player{}, false, fmt.Errorf("%w: cannot join while the scoreboard is shown", ErrInvalidTransition)
	}

	p := &Player{
		ID:        s.newID(),
		Name:      name,
		Connected: true,
		connID:    connID,
		joinSeq:   s.nextSeq,
	}
	s.nextSeq++
	s.players[p.ID] = p
	s.byConn[connID] = p.ID

	return *p, false, nil
}

// Resume re-attaches a connection id that already holds an identity,
// returning the role it resumed.
func (s *Session) Resume(connID string) Role {
	switch s.RoleOf(connID) {
	case RoleGM:
		s.gmConnected = true
		return RoleGM
	case RolePlayer:
		s.players[s.byConn[connID]].Connected = true
		return RolePlayer
	}
	return RoleNone
}

// Disconnect marks the identity held by connID as disconnected. Roster
// entries and the GM claim are kept.
func (s *Session) Disconnect(connID string) Role {
	switch s.RoleOf(connID) {
	case RoleGM:
		s.gmConnected = false
		return RoleGM
	case RolePlayer:
		s.players[s.byConn[connID]].Connected = false
		return RolePlayer
	}
	return RoleNone
}

func transitionError(action string, from Phase) error {
	return fmt.Errorf("%w: cannot %s during %s", ErrInvalidTransition, action, from)
}

// SelectSet chooses the set to play. Valid from the lobby only.
func (s *Session) SelectSet(set *ItemSet) error {
	if s.phase != PhaseLobby {
		return transitionError("select a set", s.phase)
	}
	if set == nil || set.Len() == 0 {
		return fmt.Errorf("%w: set has no items", ErrValidation)
	}

	s.set = set
	s.index = 0
	s.phase = PhaseSetSelected

	return nil
}

// Start shows the first item of the selected set.
func (s *Session) Start() (Item, error) {
	if s.phase != PhaseSetSelected {
		return Item{}, transitionError("start the game", s.phase)
	}

	s.index = 0
	clear(s.guesses)
	s.phase = PhaseItemActive

	return s.set.Item(s.index), nil
}

// SubmitGuess stores or replaces a player's guess for the active item.
func (s *Session) SubmitGuess(playerID string, value float64) (Guess, error) {
	if s.phase != PhaseItemActive {
		return Guess{}, transitionError("submit a guess", s.phase)
	}
	if _, ok := s.players[playerID]; !ok {
		return Guess{}, fmt.Errorf("%w: player %q", ErrNotFound, playerID)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return Guess{}, fmt.Errorf("%w: guess must be a non-negative number", ErrValidation)
	}

	g := Guess{
		PlayerID:    playerID,
		ItemID:      s.set.Item(s.index).ID,
		Value:       value,
		SubmittedAt: s.now(),
	}
	s.guesses[playerID] = g

	return g, nil
}

// RevealGuesses freezes guessing for the active item.
func (s *Session) RevealGuesses() ([]Guess, error) {
	if s.phase != PhaseItemActive {
		return nil, transitionError("reveal guesses", s.phase)
	}

	s.phase = PhaseGuessesRevealed

	return s.Guesses(), nil
}

// RevealAnswer scores every guess on the active item, records the round
// and adds each score to the player's total.
func (s *Session) RevealAnswer() (RoundResult, error) {
	if s.phase != PhaseGuessesRevealed {
		return RoundResult{}, transitionError("reveal the answer", s.phase)
	}

	item := s.set.Item(s.index)
	guesses := s.Guesses()

	result := RoundResult{
		ItemID:      item.ID,
		ItemName:    item.Name,
		ActualPrice: item.Price,
		Difficulty:  item.Difficulty,
		Entries:     make([]ResultEntry, 0, len(guesses)),
	}

	for _, g := range guesses {
		p := s.players[g.PlayerID]
		result.Entries = append(result.Entries, ResultEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Guess:    g.Value,
			Score:    Score(g.Value, item.Price, item.Difficulty),
		})
	}

	rankBy(result.Entries, func(e ResultEntry) int { return e.Score }, func(e *ResultEntry, rank int) { e.Rank = rank })

	for i := range result.Entries {
		p := s.players[result.Entries[i].PlayerID]
		p.Score += result.Entries[i].Score
		result.Entries[i].Total = p.Score
	}

	s.history = append(s.history, result)
	s.phase = PhaseAnswerRevealed

	return result.clone(), nil
}

// NextItem advances to the following item, or to the scoreboard when the
// set is exhausted. done reports the latter.
func (s *Session) NextItem() (item Item, done bool, err error) {
	if s.phase != PhaseAnswerRevealed {
		return Item{}, false, transitionError("advance to the next item", s.phase)
	}

	clear(s.guesses)

	if s.index+1 >= s.set.Len() {
		s.phase = PhaseScoreboard
		return Item{}, true, nil
	}

	s.index++
	s.phase = PhaseItemActive

	return s.set.Item(s.index), false, nil
}

// Reset returns a finished session to the lobby. The roster and its
// connections are kept; scores start over.
func (s *Session) Reset() error {
	if s.phase != PhaseScoreboard {
		return transitionError("reset the session", s.phase)
	}

	s.set = nil
	s.index = 0
	clear(s.guesses)
	s.history = nil
	for _, p := range s.players {
		p.Score = 0
	}
	s.phase = PhaseLobby

	return nil
}

// Scoreboard ranks every player by cumulative score, ties broken by join
// order.
func (s *Session) Scoreboard() []ScoreEntry {
	players := s.orderedPlayers()
	slices.SortStableFunc(players, func(a, b *Player) int {
		return b.Score - a.Score
	})

	out := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		out = append(out, ScoreEntry{
			PlayerID:  p.ID,
			Name:      p.Name,
			Score:     p.Score,
			Connected: p.Connected,
		})
	}

	rankBy(out, func(e ScoreEntry) int { return e.Score }, func(e *ScoreEntry, rank int) { e.Rank = rank })

	return out
}

// rankBy assigns competition ranks (1, 2, 2, 4) by descending score. The
// slice order is left as it was for equal scores.
func rankBy[E any](entries []E, score func(E) int, set func(*E, int)) {
	for i := range entries {
		rank := 1
		for j := range entries {
			if score(entries[j]) > score(entries[i]) {
				rank++
			}
		}
		set(&entries[i], rank)
	}
}
