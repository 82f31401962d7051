package bot

import (
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/services/board"
)

// LineStrategy completes its own line when it can, blocks the opponent's
// otherwise, and falls back to another strategy.
type LineStrategy struct {
	fallback Strategy
}

// NewLineStrategy creates a LineStrategy
func NewLineStrategy(fallback Strategy) *LineStrategy {
	return &LineStrategy{fallback: fallback}
}

// ChoosePosition picks a winning cell, then a blocking one, then asks the fallback
func (s *LineStrategy) ChoosePosition(b model.Board, me model.Symbol) int {
	if pos, ok := completing(b, me); ok {
		return pos
	}
	if pos, ok := completing(b, me.Other()); ok {
		return pos
	}
	return s.fallback.ChoosePosition(b, me)
}

// completing finds the empty cell of a line already holding two of sym
func completing(b model.Board, sym model.Symbol) (int, bool) {
	for _, line := range board.Lines() {
		owned, gap := 0, -1
		for _, pos := range line {
			switch b[pos] {
			case sym:
				owned++
			case model.SymbolEmpty:
				gap = pos
			}
		}
		if owned == 2 && gap >= 0 {
			return gap, true
		}
	}
	return 0, false
}
