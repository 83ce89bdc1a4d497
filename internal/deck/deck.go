// Package deck owns the word corpus and the random draws made at round
// start: a card matching the square's category and one of the two
// activity modes.
package deck

import (
	"crypto/rand"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strings"

	"github.com/vcporto/sketchdash/internal/board"
)

//go:embed words.json
var defaultCorpus embed.FS

// ErrEmptyCorpus is returned when a category filter matches no card.
// Callers are expected to load a corpus covering every category, so
// seeing this is an invariant violation, not a user error.
var ErrEmptyCorpus = errors.New("no cards match the requested category")

// Mode is the activity the active player performs for the card.
type Mode string

const (
	ModeDrawing Mode = "Desenho"
	ModeMiming  Mode = "Mímica"
)

// Card is one corpus entry. Spaces is the movement reward on success.
type Card struct {
	Category board.Category `json:"category"`
	Text     string         `json:"text"`
	Spaces   int            `json:"spaces"`
}

// Deck is a read-only card corpus. Safe for concurrent use by any
// number of rooms once loaded.
type Deck struct {
	cards      []Card
	byCategory map[board.Category][]Card
}

// Load builds a deck from the embedded corpus, or from path when it is
// non-empty.
func Load(path string) (*Deck, error) {
	var raw []byte
	var err error
	if strings.TrimSpace(path) != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = fs.ReadFile(defaultCorpus, "words.json")
	}
	if err != nil {
		return nil, fmt.Errorf("read word corpus: %w", err)
	}

	var cards []Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("parse word corpus: %w", err)
	}
	if len(cards) == 0 {
		return nil, errors.New("word corpus is empty")
	}

	d := &Deck{byCategory: make(map[board.Category][]Card)}
	for i, c := range cards {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			return nil, fmt.Errorf("corpus entry %d: empty text", i)
		}
		if c.Spaces <= 0 {
			c.Spaces = 1
		}
		d.cards = append(d.cards, c)
		d.byCategory[c.Category] = append(d.byCategory[c.Category], c)
	}
	return d, nil
}

// Draw picks a uniformly random card of the given category. An empty
// category draws from the whole corpus — the wildcard square passes "".
func (d *Deck) Draw(category board.Category) (Card, error) {
	pool := d.cards
	if category != "" {
		pool = d.byCategory[category]
	}
	if len(pool) == 0 {
		return Card{}, fmt.Errorf("%w: %q", ErrEmptyCorpus, category)
	}
	return pool[randIndex(len(pool))], nil
}

// DrawMode picks one of the two activity modes with equal probability.
func (d *Deck) DrawMode() Mode {
	if randIndex(2) == 0 {
		return ModeDrawing
	}
	return ModeMiming
}

// Covers reports whether the corpus has at least one card for every
// category the board can demand a filtered draw for.
func (d *Deck) Covers() error {
	for p := 0; p < board.Size; p++ {
		cat := board.CategoryAt(p)
		if cat == board.CategoryWildcard {
			continue // unfiltered draw
		}
		if len(d.byCategory[cat]) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyCorpus, cat)
		}
	}
	return nil
}

func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
