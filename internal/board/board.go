// Package board defines the track layout shared by server authority and
// client rendering: one canonical mapping from a team's position to the
// category it must draw from.
package board

// Size is the total track length. A team wins when its position reaches
// or passes it.
const Size = 30

// Category is the short code classifying a card's theme. The same codes
// tag entries in the word corpus.
type Category string

const (
	CategoryPerson   Category = "P" // pessoa/lugar/animal
	CategoryObject   Category = "O"
	CategoryAction   Category = "A"
	CategoryHard     Category = "D"
	CategoryLeisure  Category = "L"
	CategoryWildcard Category = "M" // mix: draw from the whole corpus
	CategoryAllPlay  Category = "T" // todos jogam: every team guesses
)

// baseCycle is the repeating sequence for ordinary squares.
var baseCycle = []Category{
	CategoryPerson,
	CategoryObject,
	CategoryAction,
	CategoryHard,
	CategoryLeisure,
	CategoryWildcard,
}

// allPlaySquares are the fixed all-play positions: start, the two
// mid-track checkpoints and the square just before the finish.
var allPlaySquares = map[int]struct{}{
	0:  {},
	9:  {},
	18: {},
	29: {},
}

// wildcardSquare always yields the mix category regardless of the cycle.
const wildcardSquare = 24

// CategoryAt maps a track position to its category. Total and
// deterministic for every position >= 0.
func CategoryAt(position int) Category {
	if position < 0 {
		position = 0
	}
	if _, ok := allPlaySquares[position]; ok {
		return CategoryAllPlay
	}
	if position == wildcardSquare {
		return CategoryWildcard
	}
	return baseCycle[position%len(baseCycle)]
}

// Name returns the display label used on cards and in the history feed.
func Name(c Category) string {
	switch c {
	case CategoryPerson:
		return "Pessoa/Lugar/Animal"
	case CategoryObject:
		return "Objeto"
	case CategoryAction:
		return "Ação"
	case CategoryHard:
		return "Difícil"
	case CategoryLeisure:
		return "Lazer"
	case CategoryWildcard:
		return "Mix"
	case CategoryAllPlay:
		return "Todos Jogam"
	default:
		return string(c)
	}
}
