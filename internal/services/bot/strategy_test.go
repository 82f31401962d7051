package bot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/noughts/internal/dependencies/mocks"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/services/bot"
)

const (
	x = model.SymbolX
	o = model.SymbolO
	e = model.SymbolEmpty
)

type StrategySuite struct {
	suite.Suite
	mockRandom *mocks.MockRandom
	random     *bot.RandomStrategy
	lines      *bot.LineStrategy
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategySuite))
}

func (s *StrategySuite) SetupTest() {
	s.mockRandom = mocks.NewMockRandom()
	s.random = bot.NewRandomStrategy(s.mockRandom)
	s.lines = bot.NewLineStrategy(s.random)
}

func (s *StrategySuite) TestRandom_PicksAmongEmptyCells() {
	b := model.Board{x, o, x, e, o, e, e, x, o}

	s.mockRandom.QueueIntn(0, 1, 2)
	s.Equal(3, s.random.ChoosePosition(b, x))
	s.Equal(5, s.random.ChoosePosition(b, x))
	s.Equal(6, s.random.ChoosePosition(b, x))
}

func (s *StrategySuite) TestLines_CompletesOwnLine() {
	// X holds 0 and 1; O threatens 3-4-5 too, but winning comes first
	b := model.Board{x, x, e, o, o, e, e, e, e}
	s.Equal(2, s.lines.ChoosePosition(b, x))
}

func (s *StrategySuite) TestLines_BlocksOpponent() {
	b := model.Board{x, e, e, o, o, e, x, e, e}
	s.Equal(5, s.lines.ChoosePosition(b, x))
}

func (s *StrategySuite) TestLines_FallsBack() {
	b := model.Board{x, e, e, e, e, e, e, e, e}
	s.mockRandom.QueueIntn(3) // fourth empty cell
	s.Equal(4, s.lines.ChoosePosition(b, o))
}

func TestNew(t *testing.T) {
	rnd := mocks.NewMockRandom()

	strategy, err := bot.New(bot.StrategyRandom, rnd)
	require.NoError(t, err)
	assert.IsType(t, &bot.RandomStrategy{}, strategy)

	strategy, err = bot.New(bot.StrategyLines, rnd)
	require.NoError(t, err)
	assert.IsType(t, &bot.LineStrategy{}, strategy)

	_, err = bot.New("genius", rnd)
	assert.Error(t, err)
}

func TestToMove(t *testing.T) {
	tests := []struct {
		name  string
		board model.Board
		want  model.Symbol
	}{
		{name: "empty board", board: model.Board{}, want: x},
		{name: "after X", board: model.Board{x}, want: o},
		{name: "after O", board: model.Board{x, o}, want: x},
		{name: "won", board: model.Board{x, x, x, o, o}, want: e},
		{name: "drawn", board: model.Board{x, o, x, x, o, o, o, x, x}, want: e},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bot.ToMove(tt.board))
		})
	}
}

func TestNextMove(t *testing.T) {
	rnd := mocks.NewMockRandom()
	strategy := bot.NewRandomStrategy(rnd)

	_, ok := bot.NextMove(strategy, model.Board{x}, x)
	assert.False(t, ok, "not X's turn")

	_, ok = bot.NextMove(strategy, model.Board{}, e)
	assert.False(t, ok, "no symbol yet")

	pos, ok := bot.NextMove(strategy, model.Board{x}, o)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
}

func TestBoardFromCells(t *testing.T) {
	b, err := bot.BoardFromCells([]string{"X", "", "", "", "O", "", "", "", ""})
	require.NoError(t, err)
	assert.Equal(t, model.Board{x, e, e, e, o, e, e, e, e}, b)

	_, err = bot.BoardFromCells([]string{"X"})
	assert.Error(t, err)

	_, err = bot.BoardFromCells([]string{"Z", "", "", "", "", "", "", "", ""})
	assert.Error(t, err)
}
