package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcoot/noughts/internal/model"
)

func movesFor(positions ...int) []model.Move {
	moves := make([]model.Move, len(positions))
	for i, p := range positions {
		moves[i] = model.Move{
			PlayerID:  model.PlayerID([]string{"p1", "p2"}[i%2]),
			Position:  p,
			Symbol:    model.SymbolForSlot(i % 2),
			Timestamp: time.Unix(int64(i), 0),
		}
	}
	return moves
}

// legalGame draws a sequence of distinct positions, alternating X and O
func legalGame() *rapid.Generator[[]int] {
	return rapid.Custom(func(t *rapid.T) []int {
		perm := rapid.Permutation([]int{0, 1, 2, 3, 4, 5, 6, 7, 8}).Draw(t, "order")
		n := rapid.IntRange(0, model.BoardSize).Draw(t, "length")
		return perm[:n]
	})
}

func TestApplyMovesEmpty(t *testing.T) {
	b := ApplyMoves(nil)
	for i, cell := range b {
		assert.Equal(t, model.SymbolEmpty, cell, "cell %d", i)
	}
}

func TestApplyMovesPlacesSymbols(t *testing.T) {
	b := ApplyMoves(movesFor(4, 0, 8))

	assert.Equal(t, model.SymbolX, b[4])
	assert.Equal(t, model.SymbolO, b[0])
	assert.Equal(t, model.SymbolX, b[8])
	assert.Equal(t, model.SymbolEmpty, b[1])
}

func TestApplyMovesSkipsOutOfRange(t *testing.T) {
	b := ApplyMoves(movesFor(-1, 9, 3))
	assert.Equal(t, model.Board{3: model.SymbolX}, b)
}

func TestApplyMovesIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		moves := movesFor(legalGame().Draw(t, "game")...)
		first := ApplyMoves(moves)
		second := ApplyMoves(moves)
		if first != second {
			t.Fatalf("replay differs: %v vs %v", first, second)
		}
	})
}

func TestApplyMovesReflectsEachMoveInOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		moves := movesFor(legalGame().Draw(t, "game")...)
		for i := range moves {
			before := ApplyMoves(moves[:i])
			after := ApplyMoves(moves[:i+1])
			p := moves[i].Position
			if before[p] != model.SymbolEmpty {
				t.Fatalf("cell %d filled before move %d", p, i)
			}
			if after[p] != moves[i].Symbol {
				t.Fatalf("cell %d = %q after move %d, want %q", p, after[p], i, moves[i].Symbol)
			}
		}
	})
}

func TestApplyMovesIsOrderSensitive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		game := legalGame().Filter(func(g []int) bool { return len(g) >= 2 }).Draw(t, "game")
		moves := movesFor(game...)

		// Swapping two moves by different symbols swaps their marks
		swapped := append([]model.Move(nil), moves...)
		swapped[0].Position, swapped[1].Position = swapped[1].Position, swapped[0].Position

		a, b := ApplyMoves(moves), ApplyMoves(swapped)
		if a == b {
			t.Fatalf("reordered log produced identical board %v", a)
		}
	})
}

func TestCheckWinEveryLine(t *testing.T) {
	for _, line := range Lines() {
		for _, sym := range []model.Symbol{model.SymbolX, model.SymbolO} {
			var b model.Board
			for _, p := range line {
				b[p] = sym
			}
			assert.True(t, CheckWin(b), "line %v for %s", line, sym)
			assert.Equal(t, sym, Winner(b))
		}
	}
}

func TestCheckWinMixedLine(t *testing.T) {
	b := model.Board{model.SymbolX, model.SymbolX, model.SymbolO}
	assert.False(t, CheckWin(b))
	assert.Equal(t, model.SymbolEmpty, Winner(b))
}

func TestCheckWinEmptyBoard(t *testing.T) {
	assert.False(t, CheckWin(model.Board{}))
}

func TestCheckWinFalseWithoutThreeInARow(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var b model.Board
		for i := range b {
			b[i] = rapid.SampledFrom([]model.Symbol{model.SymbolEmpty, model.SymbolX, model.SymbolO}).Draw(t, "cell")
		}
		want := false
		for _, l := range Lines() {
			if b[l[0]] != model.SymbolEmpty && b[l[0]] == b[l[1]] && b[l[1]] == b[l[2]] {
				want = true
			}
		}
		if CheckWin(b) != want {
			t.Fatalf("CheckWin(%v) = %v, want %v", b, !want, want)
		}
	})
}

func TestIsDraw(t *testing.T) {
	// X O X
	// X O O
	// O X X
	draw := ApplyMoves(movesFor(0, 1, 2, 4, 3, 5, 7, 6, 8))
	require.True(t, draw.IsFull())
	assert.False(t, CheckWin(draw))
	assert.True(t, IsDraw(draw))

	won := ApplyMoves(movesFor(0, 3, 1, 4, 2))
	assert.False(t, IsDraw(won))

	assert.False(t, IsDraw(model.Board{}))
}

func TestFullBoardWithWinIsNotDraw(t *testing.T) {
	// X X X
	// O O X
	// X O O
	b := ApplyMoves(movesFor(0, 3, 1, 4, 5, 7, 6, 8, 2))
	require.True(t, b.IsFull())
	assert.False(t, IsDraw(b))
	assert.True(t, CheckWin(b))
}

func TestValidateMove(t *testing.T) {
	b := ApplyMoves(movesFor(4))

	tests := []struct {
		name     string
		position int
		wantErr  error
	}{
		{"empty cell", 0, nil},
		{"last cell", 8, nil},
		{"occupied", 4, model.ErrCellOccupied},
		{"negative", -1, model.ErrInvalidPosition},
		{"past end", 9, model.ErrInvalidPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMove(b, tt.position)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, IsLegalMove(b, tt.position))
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, IsLegalMove(b, tt.position))
			}
		})
	}
}

func TestNoLegalMoveOnFullBoard(t *testing.T) {
	b := ApplyMoves(movesFor(0, 1, 2, 4, 3, 5, 7, 6, 8))
	for p := 0; p < model.BoardSize; p++ {
		assert.False(t, IsLegalMove(b, p), "position %d", p)
	}
}
