// Package matchmaking pairs identities into sessions first come, first served.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcoot/noughts/internal/dependencies/clock"
	"github.com/mcoot/noughts/internal/dependencies/random"
	"github.com/mcoot/noughts/internal/keylock"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

const (
	// SessionCodeLength is the length of generated session codes
	SessionCodeLength = 6
	// SessionCodeAlphabet is the characters used in session codes (avoid confusing chars)
	SessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	maxCodeAttempts = 16
)

// IdentityResolver resolves the identity a connection presents
type IdentityResolver interface {
	Lookup(ctx context.Context, id model.PlayerID) (model.Player, error)
}

// Result describes where a connecting identity ended up
type Result struct {
	Session *model.Session
	Symbol  model.Symbol
	// Joined is true when an existing waiting session was claimed, false when
	// a new waiting session was created
	Joined bool
}

// SeatFunc runs while the session's lock is held, right after the identity
// has been seated, so nothing else can act on the session until it returns.
// A nil SeatFunc is allowed.
type SeatFunc func(session *model.Session, joined bool) error

// Controller assigns identities to sessions
type Controller struct {
	storage    storage.Storage
	identities IdentityResolver
	sessions   *keylock.Locker[model.SessionCode]
	players    *keylock.Locker[model.PlayerID]
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
}

// NewController creates a matchmaking controller. The session locker must be
// the one the session coordinator uses, so a claim never interleaves with the
// host leaving.
func NewController(
	storage storage.Storage,
	identities IdentityResolver,
	sessions *keylock.Locker[model.SessionCode],
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		identities: identities,
		sessions:   sessions,
		players:    keylock.New[model.PlayerID](),
		clock:      clock,
		random:     random,
		logger:     logger.With(slog.String("component", "matchmaking")),
	}
}

// Connect places an identity into the oldest waiting session it can claim,
// or opens a new waiting session with the identity as X. seat runs under the
// session lock once the seat is committed; its error is returned as is.
func (c *Controller) Connect(ctx context.Context, playerID model.PlayerID, seat SeatFunc) (*Result, error) {
	player, err := c.identities.Lookup(ctx, playerID)
	if err != nil {
		return nil, err
	}

	unlock := c.players.Lock(player.ID)
	defer unlock()

	active, err := c.storage.ListSessionsByParticipant(ctx, player.ID, model.SessionWaiting, model.SessionInProgress)
	if err != nil {
		return nil, fmt.Errorf("checking active sessions: %w", err)
	}
	if len(active) > 0 {
		return nil, model.ErrAlreadyInSession
	}

	waiting, err := c.storage.ListSessionsByStatus(ctx, model.SessionWaiting)
	if err != nil {
		return nil, fmt.Errorf("listing waiting sessions: %w", err)
	}

	for _, candidate := range waiting {
		if len(candidate.Participants) != 1 || candidate.GetParticipant(player.ID) != nil {
			continue
		}

		session, err := c.claim(ctx, candidate, player, seat)
		var seatErr seatError
		if errors.As(err, &seatErr) {
			return nil, seatErr.err
		}
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrSessionNotFound) || errors.Is(err, model.ErrSessionFull) {
			c.logger.Debug("waiting session taken, trying next",
				slog.String("session_code", string(candidate.Code)),
				slog.String("player_id", string(player.ID)))
			continue
		}
		if err != nil {
			return nil, err
		}

		c.logger.Info("session joined",
			slog.String("session_code", string(session.Code)),
			slog.String("player_id", string(player.ID)))
		return &Result{Session: session, Symbol: model.SymbolO, Joined: true}, nil
	}

	session, err := c.CreateSession(ctx, model.SessionWaiting, []model.Participant{
		{PlayerID: player.ID, DisplayName: player.DisplayName, Symbol: model.SymbolX},
	}, seat)
	if err != nil {
		return nil, err
	}

	c.logger.Info("session opened",
		slog.String("session_code", string(session.Code)),
		slog.String("player_id", string(player.ID)))
	return &Result{Session: session, Symbol: model.SymbolX, Joined: false}, nil
}

// claim adds player as O to a waiting session via a conditional update
func (c *Controller) claim(ctx context.Context, candidate *model.Session, player model.Player, seat SeatFunc) (*model.Session, error) {
	unlock := c.sessions.Lock(candidate.Code)
	defer unlock()

	// Re-read under the lock; the listed copy may be stale
	session, err := c.storage.GetSession(ctx, candidate.Code)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionWaiting || len(session.Participants) != 1 {
		return nil, model.ErrSessionFull
	}

	now := c.clock.Now()
	session.Participants = append(session.Participants, model.Participant{
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
		Symbol:      model.SymbolForSlot(1),
	})
	session.Status = model.SessionInProgress
	session.TurnIndex = 0
	session.UpdatedAt = now

	if err := c.storage.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	if seat != nil {
		if err := seat(session, true); err != nil {
			return nil, seatError{err}
		}
	}
	return session, nil
}

// seatError carries a SeatFunc failure past the candidate loop untouched
type seatError struct{ err error }

func (e seatError) Error() string { return e.err.Error() }
func (e seatError) Unwrap() error { return e.err }

// CreateSession stores a new session under a freshly generated code. The code
// is locked before the session becomes visible, and seat runs before it is
// released, so a waiting session cannot be claimed until its host is seated.
func (c *Controller) CreateSession(ctx context.Context, status model.SessionStatus, participants []model.Participant, seat SeatFunc) (*model.Session, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := model.SessionCode(c.random.String(SessionCodeLength, SessionCodeAlphabet))
		session, err := c.createWithCode(ctx, code, status, participants, seat)
		if errors.Is(err, model.ErrSessionExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return session, nil
	}
	return nil, fmt.Errorf("no free session code after %d attempts: %w", maxCodeAttempts, model.ErrSessionExists)
}

func (c *Controller) createWithCode(ctx context.Context, code model.SessionCode, status model.SessionStatus, participants []model.Participant, seat SeatFunc) (*model.Session, error) {
	// The caller may already hold a session lock, so never wait on one here.
	// A code that is locked belongs to a live session anyway.
	unlock, ok := c.sessions.TryLock(code)
	if !ok {
		return nil, model.ErrSessionExists
	}
	defer unlock()

	exists, err := c.storage.SessionExists(ctx, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrSessionExists
	}

	now := c.clock.Now()
	session := &model.Session{
		Code:         code,
		Status:       status,
		Participants: append([]model.Participant(nil), participants...),
		TurnIndex:    0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.storage.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if seat != nil {
		if err := seat(session, false); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// BusyError reports which identity already has an unfinished session
type BusyError struct {
	PlayerID model.PlayerID
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("player %s: %s", e.PlayerID, model.ErrAlreadyInSession)
}

func (e *BusyError) Unwrap() error { return model.ErrAlreadyInSession }

// Reserve holds the matchmaking locks of every id and checks that none of
// them is waiting in or playing another session. While the returned release
// is pending no Connect for those ids can seat them anywhere. Player locks
// are taken before any session lock, so callers must not hold one.
func (c *Controller) Reserve(ctx context.Context, ids ...model.PlayerID) (release func(), err error) {
	ordered := slices.Clone(ids)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	unlocks := make([]func(), 0, len(ordered))
	release = func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, id := range ordered {
		unlocks = append(unlocks, c.players.Lock(id))
	}

	for _, id := range ordered {
		active, err := c.storage.ListSessionsByParticipant(ctx, id, model.SessionWaiting, model.SessionInProgress)
		if err != nil {
			release()
			return nil, fmt.Errorf("checking active sessions: %w", err)
		}
		if len(active) > 0 {
			release()
			return nil, &BusyError{PlayerID: id}
		}
	}
	return release, nil
}

// ControllerInterface for dependency injection
type ControllerInterface interface {
	Connect(ctx context.Context, playerID model.PlayerID, seat SeatFunc) (*Result, error)
	Reserve(ctx context.Context, ids ...model.PlayerID) (release func(), err error)
	CreateSession(ctx context.Context, status model.SessionStatus, participants []model.Participant, seat SeatFunc) (*model.Session, error)
}

var _ ControllerInterface = (*Controller)(nil)
