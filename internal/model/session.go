package model

import "time"

// SessionCode is a human-shareable identifier for a session
type SessionCode string

// SessionStatus represents the current phase of a session
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting"     // One participant, waiting for an opponent
	SessionInProgress SessionStatus = "in_progress" // Two participants, moves being played
	SessionCompleted  SessionStatus = "completed"   // Outcome decided, no further moves
)

// MaxParticipants is the number of participants in a full session
const MaxParticipants = 2

// Participant binds an identity to a symbol and turn slot within a session
type Participant struct {
	PlayerID    PlayerID
	DisplayName string
	Symbol      Symbol
}

// Move is a single entry in the append-only move log
type Move struct {
	PlayerID  PlayerID
	Position  int
	Symbol    Symbol
	Timestamp time.Time
}

// OutcomeKind distinguishes a decided game from a drawn one
type OutcomeKind string

const (
	OutcomeWin  OutcomeKind = "win"
	OutcomeDraw OutcomeKind = "draw"
)

// OutcomeReason records how a session came to be completed
type OutcomeReason string

const (
	ReasonLine       OutcomeReason = "line"
	ReasonBoardFull  OutcomeReason = "board_full"
	ReasonExit       OutcomeReason = "exit"
	ReasonDisconnect OutcomeReason = "disconnect"
)

// Outcome is the result of a completed session
type Outcome struct {
	Kind   OutcomeKind
	Winner PlayerID // Empty for a draw
	Reason OutcomeReason
}

// Session is one game between two participants, from pairing to completion.
// The board is never stored as truth; it is derived by replaying Moves.
type Session struct {
	Code         SessionCode
	Status       SessionStatus
	Participants []Participant
	Moves        []Move
	TurnIndex    int // Index into Participants for whose turn it is

	Outcome    *Outcome
	FinalBoard *Board // Snapshot taken at completion

	// RematchCode is the session created by a reset of this one
	RematchCode SessionCode

	// Version is the optimistic concurrency token, maintained by storage
	Version int64

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// GetParticipant returns the participant with the given ID, or nil if not found
func (s *Session) GetParticipant(playerID PlayerID) *Participant {
	for i := range s.Participants {
		if s.Participants[i].PlayerID == playerID {
			return &s.Participants[i]
		}
	}
	return nil
}

// ParticipantIndex returns the turn slot of a participant, or -1
func (s *Session) ParticipantIndex(playerID PlayerID) int {
	for i, p := range s.Participants {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// Opponent returns the other participant, or nil if there isn't one
func (s *Session) Opponent(playerID PlayerID) *Participant {
	for i := range s.Participants {
		if s.Participants[i].PlayerID != playerID {
			return &s.Participants[i]
		}
	}
	return nil
}

// CurrentParticipant returns the participant whose turn it is
func (s *Session) CurrentParticipant() *Participant {
	if s.TurnIndex < 0 || s.TurnIndex >= len(s.Participants) {
		return nil
	}
	return &s.Participants[s.TurnIndex]
}

// IsComplete returns true once an outcome has been decided
func (s *Session) IsComplete() bool {
	return s.Status == SessionCompleted
}

// Complete marks the session completed. It is a no-op if already completed,
// so the first recorded outcome and completion time are never overwritten.
func (s *Session) Complete(outcome Outcome, finalBoard Board, at time.Time) bool {
	if s.Status == SessionCompleted {
		return false
	}
	s.Status = SessionCompleted
	s.Outcome = &outcome
	s.FinalBoard = &finalBoard
	s.CompletedAt = &at
	s.UpdatedAt = at
	return true
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Moves = append([]Move(nil), s.Moves...)
	if s.Outcome != nil {
		o := *s.Outcome
		c.Outcome = &o
	}
	if s.FinalBoard != nil {
		b := *s.FinalBoard
		c.FinalBoard = &b
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
