// Package board holds the pure tic-tac-toe rules. Nothing here touches
// storage; the board is always rebuilt from a session's move log.
package board

import "github.com/mcoot/noughts/internal/model"

// lines are the eight winning triples: rows, columns, then diagonals
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Lines returns a copy of the winning triples
func Lines() [8][3]int {
	return lines
}

// ApplyMoves replays a move log onto an empty board in order.
// Moves with an out-of-range position are skipped.
func ApplyMoves(moves []model.Move) model.Board {
	var b model.Board
	for _, m := range moves {
		if !ValidPosition(m.Position) {
			continue
		}
		b[m.Position] = m.Symbol
	}
	return b
}

// CheckWin reports whether any triple holds three equal non-empty cells
func CheckWin(b model.Board) bool {
	return Winner(b) != model.SymbolEmpty
}

// Winner returns the symbol owning a completed line, or SymbolEmpty
func Winner(b model.Board) model.Symbol {
	for _, l := range lines {
		s := b[l[0]]
		if s != model.SymbolEmpty && s == b[l[1]] && s == b[l[2]] {
			return s
		}
	}
	return model.SymbolEmpty
}

// IsDraw reports whether the board is full with no winning line
func IsDraw(b model.Board) bool {
	return b.IsFull() && !CheckWin(b)
}

// ValidPosition reports whether a position is on the grid
func ValidPosition(position int) bool {
	return position >= 0 && position < model.BoardSize
}

// IsLegalMove reports whether a mark may be placed at position
func IsLegalMove(b model.Board, position int) bool {
	return ValidateMove(b, position) == nil
}

// ValidateMove checks a position is on the grid and its cell is empty
func ValidateMove(b model.Board, position int) error {
	if !ValidPosition(position) {
		return model.ErrInvalidPosition
	}
	if b[position] != model.SymbolEmpty {
		return model.ErrCellOccupied
	}
	return nil
}
