// Package session drives a session from pairing to completion. It owns no
// state: sessions live in storage and connection bindings in the registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/keylock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/registry"
	"github.com/mcoot/noughts/internal/services/board"
	"github.com/mcoot/noughts/internal/services/matchmaking"
	"github.com/mcoot/noughts/internal/storage"
)

// Messages sent to participants
const (
	MsgWaiting         = "Waiting for opponent"
	MsgDraw            = "Draw!"
	MsgOpponentLeft    = "The other player has left the game. You win!"
	MsgOpponentDropped = "The other player has disconnected. You win!"
	MsgLeft            = "You left the game."
	msgWinsFormat      = "%s wins!"
	msgStartFormat     = "Game started. You are %s"
	msgRematchFormat   = "New game started. You are %s"
	updateAttempts     = 2
)

// Registry is the part of the connection registry the coordinator uses
type Registry interface {
	Bind(id registry.ConnID, binding registry.Binding) error
	Unbind(id registry.ConnID)
	Unregister(id registry.ConnID) (registry.Binding, bool)
	Lookup(id registry.ConnID) (registry.Binding, bool)
	FindByIdentity(code model.SessionCode, playerID model.PlayerID) (registry.ConnID, bool)
	Send(id registry.ConnID, event model.Event) error
	Broadcast(code model.SessionCode, event model.Event) int
}

var _ Registry = (*registry.Registry)(nil)

// Controller is the session state machine: waiting, in progress, completed.
//
// Every read-modify-write of a session runs under that session's lock and
// commits through the store's conditional update, so two writers never both
// win. Events for a session are sent while its lock is held, which keeps them
// in commit order.
type Controller struct {
	storage    storage.Storage
	matchmaker matchmaking.ControllerInterface
	registry   Registry
	sessions   *keylock.Locker[model.SessionCode]
	clock      clock.Clock
	logger     *slog.Logger
}

// NewController creates a new session coordinator
func NewController(
	storage storage.Storage,
	matchmaker matchmaking.ControllerInterface,
	registry Registry,
	sessions *keylock.Locker[model.SessionCode],
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		matchmaker: matchmaker,
		registry:   registry,
		sessions:   sessions,
		clock:      clock,
		logger:     logger.With(slog.String("component", "session")),
	}
}

// Connect pairs the connection's identity into a session and binds the
// connection to it. A joined session starts immediately.
func (c *Controller) Connect(ctx context.Context, connID registry.ConnID, playerID model.PlayerID) (*matchmaking.Result, error) {
	if b, ok := c.registry.Lookup(connID); ok {
		if current, err := c.storage.GetSession(ctx, b.SessionCode); err == nil && !current.IsComplete() {
			return nil, model.ErrAlreadyInSession
		}
	}

	// seat runs under the session lock, so the host is always bound before
	// anyone can claim its session
	seat := func(sess *model.Session, joined bool) error {
		me := sess.GetParticipant(playerID)
		err := c.registry.Bind(connID, registry.Binding{
			SessionCode: sess.Code,
			PlayerID:    me.PlayerID,
			DisplayName: me.DisplayName,
			Symbol:      me.Symbol,
		})
		if err != nil {
			c.logger.Warn("connection gone before bind",
				slog.String("conn_id", string(connID)),
				slog.String("session_code", string(sess.Code)))
			if left, forfeited := c.leaveLocked(ctx, sess.Code, playerID, model.ReasonDisconnect); forfeited {
				c.unbindOpponent(left, playerID)
			}
			return err
		}

		if !joined {
			c.send(connID, model.Event{
				Type:         model.EventMessage,
				SessionCode:  sess.Code,
				Symbol:       me.Symbol,
				Participants: sess.Participants,
				Message:      MsgWaiting,
			})
			return nil
		}

		c.announce(sess, model.EventStart, msgStartFormat)
		c.logger.Info("session started",
			slog.String("session_code", string(sess.Code)),
			slog.String("player_x", string(sess.Participants[0].PlayerID)),
			slog.String("player_o", string(sess.Participants[1].PlayerID)))
		return nil
	}

	return c.matchmaker.Connect(ctx, playerID, seat)
}

// announce sends each participant's connection an event carrying its own symbol
func (c *Controller) announce(sess *model.Session, eventType model.EventType, format string) {
	for _, p := range sess.Participants {
		id, ok := c.registry.FindByIdentity(sess.Code, p.PlayerID)
		if !ok {
			continue
		}
		c.send(id, model.Event{
			Type:         eventType,
			SessionCode:  sess.Code,
			Symbol:       p.Symbol,
			Participants: sess.Participants,
			Board:        board.ApplyMoves(sess.Moves),
			Message:      fmt.Sprintf(format, p.Symbol),
		})
	}
}

// PlaceMove plays the caller's symbol at position
func (c *Controller) PlaceMove(ctx context.Context, connID registry.ConnID, position int) (*model.Session, error) {
	b, ok := c.registry.Lookup(connID)
	if !ok {
		return nil, model.ErrNotInSession
	}

	unlock := c.sessions.Lock(b.SessionCode)
	defer unlock()

	var move model.Move
	sess, err := c.updateLocked(ctx, b.SessionCode, func(sess *model.Session) (bool, error) {
		if sess.Status != model.SessionInProgress {
			return false, model.ErrSessionNotInProgress
		}
		idx := sess.ParticipantIndex(b.PlayerID)
		if idx < 0 {
			return false, model.ErrNotParticipant
		}
		if idx != sess.TurnIndex {
			return false, model.ErrNotPlayerTurn
		}

		grid := board.ApplyMoves(sess.Moves)
		if err := board.ValidateMove(grid, position); err != nil {
			return false, err
		}

		now := c.clock.Now()
		player := sess.Participants[idx]
		move = model.Move{PlayerID: player.PlayerID, Position: position, Symbol: player.Symbol, Timestamp: now}
		sess.Moves = append(sess.Moves, move)
		grid[position] = player.Symbol
		sess.UpdatedAt = now

		switch {
		case board.CheckWin(grid):
			sess.Complete(model.Outcome{Kind: model.OutcomeWin, Winner: player.PlayerID, Reason: model.ReasonLine}, grid, now)
		case board.IsDraw(grid):
			sess.Complete(model.Outcome{Kind: model.OutcomeDraw, Reason: model.ReasonBoardFull}, grid, now)
		default:
			sess.TurnIndex = 1 - sess.TurnIndex
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	grid := board.ApplyMoves(sess.Moves)
	c.registry.Broadcast(sess.Code, model.Event{
		Type:         model.EventMove,
		Timestamp:    move.Timestamp,
		SessionCode:  sess.Code,
		Participants: sess.Participants,
		Position:     move.Position,
		MovedBy:      move.Symbol,
		Board:        grid,
	})

	if sess.IsComplete() {
		c.broadcastOutcome(sess)
	}
	return sess, nil
}

func (c *Controller) broadcastOutcome(sess *model.Session) {
	msg := MsgDraw
	if sess.Outcome.Kind == model.OutcomeWin {
		msg = fmt.Sprintf(msgWinsFormat, sess.GetParticipant(sess.Outcome.Winner).DisplayName)
	}
	c.registry.Broadcast(sess.Code, model.Event{
		Type:        model.EventMessage,
		Timestamp:   c.clock.Now(),
		SessionCode: sess.Code,
		Board:       *sess.FinalBoard,
		Message:     msg,
	})
	c.logger.Info("session completed",
		slog.String("session_code", string(sess.Code)),
		slog.String("outcome", string(sess.Outcome.Kind)),
		slog.String("winner", string(sess.Outcome.Winner)),
		slog.Int("moves", len(sess.Moves)))
}

// reserveFailed maps a failed reservation. A participant that is busy because
// a concurrent reset already paired them again is not an error.
func (c *Controller) reserveFailed(ctx context.Context, code model.SessionCode, caller model.PlayerID, err error) error {
	var busy *matchmaking.BusyError
	if !errors.As(err, &busy) {
		return err
	}
	if prev, getErr := c.storage.GetSession(ctx, code); getErr == nil && prev.RematchCode != "" {
		return nil
	}
	if busy.PlayerID == caller {
		return model.ErrAlreadyInSession
	}
	return model.ErrOpponentUnavailable
}

// errAlreadyReset stops a reset that lost to a concurrent one
var errAlreadyReset = errors.New("session already reset")

// Reset starts a rematch between the participants of a completed session.
// Symbols carry over and X opens. A reset that finds the rematch already
// created does nothing.
func (c *Controller) Reset(ctx context.Context, connID registry.ConnID) (*model.Session, error) {
	b, ok := c.registry.Lookup(connID)
	if !ok {
		return nil, model.ErrNotInSession
	}

	prev, err := c.storage.GetSession(ctx, b.SessionCode)
	if err != nil {
		return nil, err
	}
	if !prev.IsComplete() {
		return nil, model.ErrSessionNotCompleted
	}
	if prev.RematchCode != "" {
		return nil, nil
	}

	// Player locks come before the session lock, same order as Connect
	ids := make([]model.PlayerID, len(prev.Participants))
	for i, p := range prev.Participants {
		ids[i] = p.PlayerID
	}
	release, err := c.matchmaker.Reserve(ctx, ids...)
	if err != nil {
		return nil, c.reserveFailed(ctx, prev.Code, b.PlayerID, err)
	}
	defer release()

	unlock := c.sessions.Lock(b.SessionCode)
	defer unlock()

	prev, err = c.storage.GetSession(ctx, b.SessionCode)
	if err != nil {
		return nil, err
	}
	if prev.RematchCode != "" {
		return nil, nil
	}

	conns := make([]registry.ConnID, len(prev.Participants))
	for i, p := range prev.Participants {
		id, ok := c.registry.FindByIdentity(prev.Code, p.PlayerID)
		if !ok {
			return nil, model.ErrOpponentUnavailable
		}
		conns[i] = id
	}

	next, err := c.matchmaker.CreateSession(ctx, model.SessionInProgress, prev.Participants, nil)
	if err != nil {
		return nil, err
	}

	_, err = c.updateLocked(ctx, prev.Code, func(sess *model.Session) (bool, error) {
		if sess.RematchCode != "" {
			return false, errAlreadyReset
		}
		sess.RematchCode = next.Code
		sess.UpdatedAt = c.clock.Now()
		return true, nil
	})
	if err != nil {
		if delErr := c.storage.DeleteSession(ctx, next.Code); delErr != nil {
			c.logger.Error("failed to remove unused rematch session",
				slog.String("session_code", string(next.Code)),
				slog.String("error", delErr.Error()))
		}
		if errors.Is(err, errAlreadyReset) {
			return nil, nil
		}
		return nil, err
	}

	for i, p := range next.Participants {
		err := c.registry.Bind(conns[i], registry.Binding{
			SessionCode: next.Code,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Symbol:      p.Symbol,
		})
		if err != nil {
			c.logger.Warn("rebind failed",
				slog.String("conn_id", string(conns[i])),
				slog.String("session_code", string(next.Code)),
				slog.String("error", err.Error()))
		}
	}

	c.announce(next, model.EventReset, msgRematchFormat)
	c.logger.Info("session reset",
		slog.String("previous_code", string(prev.Code)),
		slog.String("session_code", string(next.Code)))
	return next, nil
}

// Exit leaves the caller's session. Leaving a game in progress hands the win
// to the other participant; leaving a waiting session removes it.
func (c *Controller) Exit(ctx context.Context, connID registry.ConnID) error {
	b, ok := c.registry.Lookup(connID)
	if !ok {
		return model.ErrNotInSession
	}

	unlock := c.sessions.Lock(b.SessionCode)
	defer unlock()

	sess, forfeited := c.leaveLocked(ctx, b.SessionCode, b.PlayerID, model.ReasonExit)
	c.send(connID, model.Event{Type: model.EventMessage, SessionCode: b.SessionCode, Message: MsgLeft})
	c.registry.Unbind(connID)
	if forfeited {
		c.unbindOpponent(sess, b.PlayerID)
	}
	return nil
}

// Disconnect cleans up after a connection closes. It is safe to call for a
// connection that never bound to a session.
func (c *Controller) Disconnect(ctx context.Context, connID registry.ConnID) {
	b, ok := c.registry.Unregister(connID)
	if !ok {
		return
	}

	unlock := c.sessions.Lock(b.SessionCode)
	defer unlock()

	sess, forfeited := c.leaveLocked(ctx, b.SessionCode, b.PlayerID, model.ReasonDisconnect)
	if forfeited {
		c.unbindOpponent(sess, b.PlayerID)
	}
}

func (c *Controller) unbindOpponent(sess *model.Session, playerID model.PlayerID) {
	other := sess.Opponent(playerID)
	if other == nil {
		return
	}
	if id, ok := c.registry.FindByIdentity(sess.Code, other.PlayerID); ok {
		c.registry.Unbind(id)
	}
}

// leaveLocked removes playerID from play in a session. A game in progress is
// forfeited to the opponent, who is told; a waiting session is deleted; a
// completed session is left untouched. It reports whether this call decided
// the outcome. Storage failures are logged, not returned, so connection
// cleanup always finishes. The caller holds the session lock.
func (c *Controller) leaveLocked(ctx context.Context, code model.SessionCode, playerID model.PlayerID, reason model.OutcomeReason) (*model.Session, bool) {
	log := c.logger.With(
		slog.String("session_code", string(code)),
		slog.String("player_id", string(playerID)),
		slog.String("reason", string(reason)))

	sess, err := c.storage.GetSession(ctx, code)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil, false
	}
	if err != nil {
		log.Error("failed to load session on leave", slog.String("error", err.Error()))
		return nil, false
	}

	switch sess.Status {
	case model.SessionWaiting:
		if len(sess.Participants) == 1 && sess.Participants[0].PlayerID == playerID {
			if err := c.storage.DeleteSession(ctx, code); err != nil {
				log.Error("failed to delete waiting session", slog.String("error", err.Error()))
			} else {
				log.Info("waiting session removed")
			}
		}
		return sess, false

	case model.SessionInProgress:
		decided := false
		updated, err := c.updateLocked(ctx, code, func(sess *model.Session) (bool, error) {
			other := sess.Opponent(playerID)
			if other == nil || sess.GetParticipant(playerID) == nil {
				return false, nil
			}
			decided = sess.Complete(model.Outcome{
				Kind:   model.OutcomeWin,
				Winner: other.PlayerID,
				Reason: reason,
			}, board.ApplyMoves(sess.Moves), c.clock.Now())
			return decided, nil
		})
		if err != nil {
			log.Error("failed to record forfeit", slog.String("error", err.Error()))
			return sess, false
		}
		if !decided {
			return updated, false
		}

		msg := MsgOpponentLeft
		if reason == model.ReasonDisconnect {
			msg = MsgOpponentDropped
		}
		if other := updated.Opponent(playerID); other != nil {
			if id, ok := c.registry.FindByIdentity(code, other.PlayerID); ok {
				c.send(id, model.Event{
					Type:        model.EventMessage,
					SessionCode: code,
					Board:       *updated.FinalBoard,
					Message:     msg,
				})
			}
		}
		log.Info("session forfeited")
		return updated, true

	default:
		return sess, false
	}
}

// updateLocked applies fn to a fresh copy of the session and commits it if fn
// reports a change. A version conflict is retried once from a fresh read.
// The caller holds the session lock.
func (c *Controller) updateLocked(ctx context.Context, code model.SessionCode, fn func(*model.Session) (bool, error)) (*model.Session, error) {
	for attempt := 1; attempt <= updateAttempts; attempt++ {
		sess, err := c.storage.GetSession(ctx, code)
		if err != nil {
			return nil, err
		}
		changed, err := fn(sess)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sess, nil
		}

		err = c.storage.UpdateSession(ctx, sess)
		if errors.Is(err, model.ErrConflict) {
			c.logger.Warn("session update conflict",
				slog.String("session_code", string(code)),
				slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("saving session %s: %w", code, err)
		}
		return sess, nil
	}
	return nil, model.ErrConflict
}

func (c *Controller) send(id registry.ConnID, event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.clock.Now()
	}
	// Failures are logged by the registry
	_ = c.registry.Send(id, event)
}

// ControllerInterface for dependency injection
type ControllerInterface interface {
	Connect(ctx context.Context, connID registry.ConnID, playerID model.PlayerID) (*matchmaking.Result, error)
	PlaceMove(ctx context.Context, connID registry.ConnID, position int) (*model.Session, error)
	Reset(ctx context.Context, connID registry.ConnID) (*model.Session, error)
	Exit(ctx context.Context, connID registry.ConnID) error
	Disconnect(ctx context.Context, connID registry.ConnID)
}

var _ ControllerInterface = (*Controller)(nil)
