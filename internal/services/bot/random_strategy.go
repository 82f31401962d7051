package bot

import (
	"github.com/mcoot/noughts/internal/dependencies/random"
	"github.com/mcoot/noughts/internal/model"
)

// RandomStrategy picks a random empty cell
type RandomStrategy struct {
	random random.Random
}

// NewRandomStrategy creates a new RandomStrategy
func NewRandomStrategy(rnd random.Random) *RandomStrategy {
	return &RandomStrategy{random: rnd}
}

// ChoosePosition picks a random empty cell on the board
func (s *RandomStrategy) ChoosePosition(b model.Board, _ model.Symbol) int {
	empty := emptyCells(b)
	if len(empty) == 0 {
		return 0
	}
	return empty[s.random.Intn(len(empty))]
}

func emptyCells(b model.Board) []int {
	var empty []int
	for i, cell := range b {
		if cell == model.SymbolEmpty {
			empty = append(empty, i)
		}
	}
	return empty
}
