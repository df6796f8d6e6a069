package priceguess

// ItemView is an item as players see it: no price.
type ItemView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Difficulty  Tier   `json:"difficulty"`
	Index       int    `json:"index"`
	Total       int    `json:"total"`
}

// RosterEntry shows whether a player has guessed, never what.
type RosterEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Guessed   bool   `json:"guessed"`
}

type GuessView struct {
	PlayerID string  `json:"player_id"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
}

// PublicState is the state every connection may see.
type PublicState struct {
	Phase       Phase         `json:"phase"`
	Set         *SetSummary   `json:"set,omitempty"`
	Item        *ItemView     `json:"item,omitempty"`
	Roster      []RosterEntry `json:"roster"`
	GuessCount  int           `json:"guess_count"`
	Guesses     []GuessView   `json:"guesses,omitempty"`
	Result      *RoundResult  `json:"result,omitempty"`
	Scoreboard  []ScoreEntry  `json:"scoreboard,omitempty"`
	GMConnected bool          `json:"gm_connected"`
}

// GMState adds what only the game master may see before the reveals.
type GMState struct {
	PublicState
	ActualPrice  *float64    `json:"actual_price,omitempty"`
	GuessesSoFar []GuessView `json:"guesses_so_far"`
}

func (s *Session) itemView(item Item) *ItemView {
	return &ItemView{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Image:       item.Image,
		Difficulty:  item.Difficulty,
		Index:       s.index,
		Total:       s.set.Len(),
	}
}

func (s *Session) guessViews() []GuessView {
	guesses := s.Guesses()
	out := make([]GuessView, 0, len(guesses))
	for _, g := range guesses {
		out = append(out, GuessView{
			PlayerID: g.PlayerID,
			Name:     s.players[g.PlayerID].Name,
			Value:    g.Value,
		})
	}
	return out
}

func (s *Session) rosterView() []RosterEntry {
	players := s.orderedPlayers()
	out := make([]RosterEntry, 0, len(players))
	for _, p := range players {
		_, guessed := s.guesses[p.ID]
		out = append(out, RosterEntry{
			ID:        p.ID,
			Name:      p.Name,
			Score:     p.Score,
			Connected: p.Connected,
			Guessed:   guessed,
		})
	}
	return out
}

// PublicState never exposes the active item's price before the answer is
// revealed, nor guess values before the guesses are revealed.
func (s *Session) PublicState() PublicState {
	st := PublicState{
		Phase:       s.phase,
		Roster:      s.rosterView(),
		GuessCount:  len(s.guesses),
		GMConnected: s.gmConnected,
	}

	if s.set != nil {
		summary := s.set.Summary()
		st.Set = &summary
	}

	if item, ok := s.CurrentItem(); ok {
		st.Item = s.itemView(item)
	}

	switch s.phase {
	case PhaseGuessesRevealed:
		st.Guesses = s.guessViews()
	case PhaseAnswerRevealed:
		st.Guesses = s.guessViews()
		if n := len(s.history); n > 0 {
			last := s.history[n-1].clone()
			st.Result = &last
		}
	case PhaseScoreboard:
		st.Scoreboard = s.Scoreboard()
	}

	return st
}

func (s *Session) GMState() GMState {
	st := GMState{
		PublicState:  s.PublicState(),
		GuessesSoFar: s.guessViews(),
	}
	if item, ok := s.CurrentItem(); ok {
		price := item.Price
		st.ActualPrice = &price
	}
	return st
}
