// Package bot picks moves for an automated player. It only ever sees the
// board the server reports, so it can drive a client connection.
package bot

import (
	"fmt"

	"github.com/mcoot/noughts/internal/dependencies/random"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/services/board"
)

// Strategy names accepted by New
const (
	StrategyRandom = "random"
	StrategyLines  = "lines"
)

// Strategy chooses a cell to play. Callers only ask when the board has an
// empty cell.
type Strategy interface {
	ChoosePosition(b model.Board, me model.Symbol) int
}

// New returns the named strategy
func New(name string, rnd random.Random) (Strategy, error) {
	switch name {
	case StrategyRandom:
		return NewRandomStrategy(rnd), nil
	case StrategyLines:
		return NewLineStrategy(NewRandomStrategy(rnd)), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// ToMove returns whose turn it is on b, or SymbolEmpty once the game is
// decided. X always opens, so the counts of each mark say who is next.
func ToMove(b model.Board) model.Symbol {
	if board.CheckWin(b) || b.IsFull() {
		return model.SymbolEmpty
	}
	var xs, os int
	for _, cell := range b {
		switch cell {
		case model.SymbolX:
			xs++
		case model.SymbolO:
			os++
		}
	}
	if xs == os {
		return model.SymbolX
	}
	return model.SymbolO
}

// NextMove asks s for a move if it is me's turn
func NextMove(s Strategy, b model.Board, me model.Symbol) (int, bool) {
	if me == model.SymbolEmpty || ToMove(b) != me {
		return 0, false
	}
	return s.ChoosePosition(b, me), true
}

// BoardFromCells rebuilds a board from its wire form
func BoardFromCells(cells []string) (model.Board, error) {
	var b model.Board
	if len(cells) != model.BoardSize {
		return b, fmt.Errorf("board has %d cells, want %d", len(cells), model.BoardSize)
	}
	for i, cell := range cells {
		switch s := model.Symbol(cell); s {
		case model.SymbolX, model.SymbolO, model.SymbolEmpty:
			b[i] = s
		default:
			return b, fmt.Errorf("cell %d holds %q", i, cell)
		}
	}
	return b, nil
}
