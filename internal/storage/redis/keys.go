package redis

import (
	"fmt"

	"github.com/mcoot/noughts/internal/model"
)

// Key prefix for all noughts data
const keyPrefix = "noughts"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// sessionKey returns the Redis key for a Session record
func sessionKey(code model.SessionCode) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, code)
}

// sequenceKey returns the counter used to order sessions by creation
func sequenceKey() string {
	return fmt.Sprintf("%s:seq:session", keyPrefix)
}

// orderIndexKey returns the ZSET of every session code scored by creation sequence
func orderIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

// statusIndexKey returns the ZSET of session codes in a status, scored by creation sequence
func statusIndexKey(status model.SessionStatus) string {
	return fmt.Sprintf("%s:idx:status:%s", keyPrefix, status)
}

// participantIndexKey returns the SET of session codes a player took part in
func participantIndexKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:participant:%s", keyPrefix, playerID)
}
