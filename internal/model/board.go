package model

import "fmt"

// BoardSize is the number of cells on the grid
const BoardSize = 9

// Symbol is the mark a participant places on the board
type Symbol string

const (
	SymbolEmpty Symbol = ""
	SymbolX     Symbol = "X"
	SymbolO     Symbol = "O"
)

// Other returns the opposing symbol
func (s Symbol) Other() Symbol {
	switch s {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	default:
		return SymbolEmpty
	}
}

// SymbolForSlot returns the symbol assigned to a turn slot (0 is X, 1 is O)
func SymbolForSlot(slot int) Symbol {
	if slot == 0 {
		return SymbolX
	}
	return SymbolO
}

// Board is a row-major 3x3 grid. Empty cells hold SymbolEmpty.
type Board [BoardSize]Symbol

// IsFull returns true if no cell is empty
func (b Board) IsFull() bool {
	for _, cell := range b {
		if cell == SymbolEmpty {
			return false
		}
	}
	return true
}

// Cells returns the board as strings, empty cells as ""
func (b Board) Cells() []string {
	cells := make([]string, BoardSize)
	for i, cell := range b {
		cells[i] = string(cell)
	}
	return cells
}

// Rows renders the board as three display rows, e.g. "X | O |  "
func (b Board) Rows() [3]string {
	var rows [3]string
	for r := 0; r < 3; r++ {
		rows[r] = fmt.Sprintf("%s | %s | %s",
			displayCell(b[r*3]), displayCell(b[r*3+1]), displayCell(b[r*3+2]))
	}
	return rows
}

func displayCell(s Symbol) string {
	if s == SymbolEmpty {
		return " "
	}
	return string(s)
}
