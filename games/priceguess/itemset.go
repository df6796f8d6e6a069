/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package priceguess

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemDefinition is one item as uploaded or persisted, before validation.
// Price accepts either a JSON number or a numeric string.
type ItemDefinition struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image,omitempty"`
	Difficulty  string      `json:"difficulty"`
	Price       json.Number `json:"price"`
}

// SetDefinition is the raw form of an item set, as stored by a Persister.
type SetDefinition struct {
	ID        int64            `json:"id,omitempty"`
	Name      string           `json:"name"`
	PitchLine string           `json:"pitch_line"`
	Items     []ItemDefinition `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// zonelessLayout is an ISO 8601 timestamp without an offset, as written by
// Python's datetime.isoformat. Such times are read as UTC.
const zonelessLayout = "2006-01-02T15:04:05.999999999"

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(zonelessLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrValidation, s)
	}
	return t, nil
}

// UnmarshalJSON accepts RFC 3339 timestamps as well as zoneless ones.
func (d *SetDefinition) UnmarshalJSON(b []byte) error {
	type plain SetDefinition
	aux := struct {
		*plain
		CreatedAt *string `json:"created_at"`
		UpdatedAt *string `json:"updated_at"`
	}{plain: (*plain)(d)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var err error
	if aux.CreatedAt != nil {
		if d.CreatedAt, err = parseTimestamp(*aux.CreatedAt); err != nil {
			return err
		}
	}
	if aux.UpdatedAt != nil {
		if d.UpdatedAt, err = parseTimestamp(*aux.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

// Item is a validated, guessable entity. Price is secret until the answer
// is revealed.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image,omitempty"`
	Difficulty  Tier    `json:"difficulty"`
	Price       float64 `json:"price"`
}

// ItemSet is immutable once built; a re-upload replaces it wholesale.
type ItemSet struct {
	ID        int64
	Name      string
	PitchLine string
	CreatedAt time.Time
	UpdatedAt time.Time

	items []Item
}

// SetSummary is the listing form of an ItemSet. It carries no prices.
type SetSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PitchLine string `json:"pitch_line"`
	ItemCount int    `json:"item_count"`
}

func (s *ItemSet) Len() int {
	return len(s.items)
}

func (s *ItemSet) Item(i int) Item {
	return s.items[i]
}

func (s *ItemSet) Items() []Item {
	return slices.Clone(s.items)
}

func (s *ItemSet) Summary() SetSummary {
	return SetSummary{
		ID:        s.ID,
		Name:      s.Name,
		PitchLine: s.PitchLine,
		ItemCount: len(s.items),
	}
}

// Definition converts the set back into its persisted form.
func (s *ItemSet) Definition() SetDefinition {
	def := SetDefinition{
		ID:        s.ID,
		Name:      s.Name,
		PitchLine: s.PitchLine,
		Items:     make([]ItemDefinition, 0, len(s.items)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, it := range s.items {
		def.Items = append(def.Items, ItemDefinition{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			Difficulty:  it.Difficulty.String(),
			Price:       json.Number(strconv.FormatFloat(it.Price, 'f', -1, 64)),
		})
	}
	return def
}

func parsePrice(n json.Number) (float64, error) {
	raw := strings.TrimSpace(n.String())
	if raw == "" {
		return 0, errors.New("price is required")
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q is not a number", raw)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, fmt.Errorf("price %q must be a positive number", raw)
	}
	return price, nil
}

// Build validates def and returns the resulting set. Any invalid item fails
// the whole set. Missing item ids are filled from newID.
func Build(def SetDefinition, newID func() string) (*ItemSet, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: set name is required", ErrValidation)
	}
	if len(def.Items) == 0 {
		return nil, fmt.Errorf("%w: set %q has no items", ErrValidation, name)
	}

	items := make([]Item, 0, len(def.Items))
	seen := make(map[string]bool, len(def.Items))

	for i, raw := range def.Items {
		itemName := strings.TrimSpace(raw.Name)
		if itemName == "" {
			return nil, fmt.Errorf("%w: item %d: name is required", ErrValidation, i)
		}

		price, err := parsePrice(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%s): %v", ErrValidation, i, itemName, err)
		}

		tier, err := ParseTier(raw.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, itemName, err)
		}

		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = newID()
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: item %d: duplicate id %q", ErrValidation, i, id)
		}
		seen[id] = true

		items = append(items, Item{
			ID:          id,
			Name:        itemName,
			Description: strings.TrimSpace(raw.Description),
			Image:       strings.TrimSpace(raw.Image),
			Difficulty:  tier,
			Price:       price,
		})
	}

	return &ItemSet{
		ID:        def.ID,
		Name:      name,
		PitchLine: strings.TrimSpace(def.PitchLine),
		CreatedAt: def.CreatedAt,
		UpdatedAt: def.UpdatedAt,
		items:     items,
	}, nil
}

// Persister loads and saves set definitions keyed by id. The store never
// sees the storage medium.
type Persister interface {
	LoadSets(ctx context.Context) ([]SetDefinition, error)
	SaveSet(ctx context.Context, def SetDefinition) error
	DeleteSet(ctx context.Context, id int64) error
}

// Store is the in-memory registry of item sets, shared by HTTP handlers and
// game hubs.
type Store struct {
	mu      sync.RWMutex
	sets    map[int64]*ItemSet
	persist Persister

	newID func() string
	now   func() time.Time
}

// NewStore returns an empty store. persist may be nil, in which case sets
// only live in memory.
func NewStore(persist Persister) *Store {
	return &Store{
		sets:    make(map[int64]*ItemSet),
		persist: persist,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

func (st *Store) nextIDLocked() int64 {
	var max int64
	for id := range st.sets {
		if id > max {
			max = id
		}
	}
	return max + 1
}

// Load validates def and registers it in memory only. A set with an
// existing id replaces the previous one.
func (st *Store) Load(def SetDefinition) (*ItemSet, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.loadLocked(def)
}

func (st *Store) loadLocked(def SetDefinition) (*ItemSet, error) {
	if def.ID < 0 {
		return nil, fmt.Errorf("%w: set id must be positive", ErrValidation)
	}

	set, err := Build(def, st.newID)
	if err != nil {
		return nil, err
	}

	if set.ID == 0 {
		set.ID = st.nextIDLocked()
	}
	now := st.now()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	if set.UpdatedAt.IsZero() {
		set.UpdatedAt = set.CreatedAt
	}

	st.sets[set.ID] = set

	return set, nil
}

// Save validates def, persists it and registers it. A def without an id
// creates a new set; a def with an id replaces that set, which must exist.
func (st *Store) Save(ctx context.Context, def SetDefinition) (*ItemSet, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.saveLocked(ctx, def, true)
}

// ImportResult reports what Import did with one definition.
type ImportResult struct {
	// SourceID is the id the definition carried, 0 if none.
	SourceID int64
	Set      *ItemSet
	// Replaced is set when the set overwrote one that existed before the
	// import began.
	Replaced bool
	Err      error
}

// Import saves a batch of definitions coming from another store. Positive
// ids are kept. A definition without one, or repeating an id an earlier
// definition in the batch already took, gets an id that no definition in
// the batch asked for. An import never overwrites a set it created itself.
func (st *Store) Import(ctx context.Context, defs []SetDefinition) []ImportResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	reserved := make(map[int64]bool, len(defs))
	for _, def := range defs {
		if def.ID > 0 {
			reserved[def.ID] = true
		}
	}

	next := st.nextIDLocked()
	fresh := func() int64 {
		for reserved[next] || st.sets[next] != nil {
			next++
		}
		next++
		return next - 1
	}

	taken := make(map[int64]bool, len(defs))
	results := make([]ImportResult, len(defs))

	for i, def := range defs {
		res := &results[i]
		res.SourceID = def.ID

		if def.ID < 0 {
			res.Err = fmt.Errorf("%w: set id must be positive", ErrValidation)
			continue
		}
		if def.ID == 0 || taken[def.ID] {
			def.ID = fresh()
		}
		_, res.Replaced = st.sets[def.ID]

		res.Set, res.Err = st.saveLocked(ctx, def, false)
		if res.Err != nil {
			res.Replaced = false
			continue
		}
		taken[res.Set.ID] = true
	}

	return results
}

func (st *Store) saveLocked(ctx context.Context, def SetDefinition, mustExist bool) (*ItemSet, error) {
	if def.ID < 0 {
		return nil, fmt.Errorf("%w: set id must be positive", ErrValidation)
	}

	set, err := Build(def, st.newID)
	if err != nil {
		return nil, err
	}

	now := st.now()

	prev, exists := st.sets[set.ID]
	switch {
	case set.ID == 0:
		set.ID = st.nextIDLocked()
		set.CreatedAt = now
	case exists:
		set.CreatedAt = prev.CreatedAt
	case mustExist:
		return nil, fmt.Errorf("%w: set %d", ErrNotFound, set.ID)
	case set.CreatedAt.IsZero():
		set.CreatedAt = now
	}
	set.UpdatedAt = now

	if st.persist != nil {
		if err := st.persist.SaveSet(ctx, set.Definition()); err != nil {
			return nil, fmt.Errorf("save set %d: %w", set.ID, err)
		}
	}

	st.sets[set.ID] = set

	return set, nil
}

// Delete removes a set from memory and persistence. Sessions already
// playing the set keep their reference.
func (st *Store) Delete(ctx context.Context, id int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sets[id]; !ok {
		return fmt.Errorf("%w: set %d", ErrNotFound, id)
	}

	if st.persist != nil {
		if err := st.persist.DeleteSet(ctx, id); err != nil {
			return fmt.Errorf("delete set %d: %w", id, err)
		}
	}

	delete(st.sets, id)

	return nil
}

// Restore loads every persisted definition. Invalid definitions are skipped
// and reported through the returned error list; a load failure aborts.
func (st *Store) Restore(ctx context.Context) (int, []error, error) {
	if st.persist == nil {
		return 0, nil, nil
	}

	defs, err := st.persist.LoadSets(ctx)
	if err != nil {
		return 0, nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var (
		loaded  int
		skipped []error
	)
	for _, def := range defs {
		if _, err := st.loadLocked(def); err != nil {
			skipped = append(skipped, fmt.Errorf("set %d: %w", def.ID, err))
			continue
		}
		loaded++
	}

	return loaded, skipped, nil
}

// Get returns the set with the given id.
func (st *Store) Get(id int64) (*ItemSet, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	set, ok := st.sets[id]
	if !ok {
		return nil, fmt.Errorf("%w: set %d", ErrNotFound, id)
	}
	return set, nil
}

// All returns every set ordered by id.
func (st *Store) All() []*ItemSet {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*ItemSet, 0, len(st.sets))
	for _, set := range st.sets {
		out = append(out, set)
	}
	slices.SortFunc(out, func(a, b *ItemSet) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// List returns summaries of every set ordered by id.
func (st *Store) List() []SetSummary {
	sets := st.All()

	out := make([]SetSummary, 0, len(sets))
	for _, set := range sets {
		out = append(out, set.Summary())
	}
	return out
}
