package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Each session is a JSON document. Conditional updates WATCH the document and
// commit the new version together with the index changes in one MULTI block.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.RenameAttempts <= 0 {
		cfg.RenameAttempts = 1
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, playerKey(player.ID), data, s.cfg.PlayerTTL).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.Session) error {
	key := sessionKey(session.Code)
	stored := session.Clone()
	stored.Version = 1
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrSessionExists
		}

		seq, err := tx.Incr(ctx, sequenceKey()).Result()
		if err != nil {
			return err
		}
		member := redis.Z{Score: float64(seq), Member: string(session.Code)}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, orderIndexKey(), member)
			pipe.ZAdd(ctx, statusIndexKey(stored.Status), member)
			for _, p := range stored.Participants {
				pipe.SAdd(ctx, participantIndexKey(p.PlayerID), string(session.Code))
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrSessionExists
	}
	if err != nil {
		return err
	}

	session.Version = stored.Version
	return nil
}

func (s *Storage) GetSession(ctx context.Context, code model.SessionCode) (*model.Session, error) {
	return s.getSession(ctx, s.client, code)
}

func (s *Storage) getSession(ctx context.Context, g getter, code model.SessionCode) (*model.Session, error) {
	data, err := g.Get(ctx, sessionKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return decodeSession(data)
}

func decodeSession(data []byte) (*model.Session, error) {
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &session, nil
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.Session) error {
	key := sessionKey(session.Code)
	stored := session.Clone()
	stored.Version = session.Version + 1
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.getSession(ctx, tx, session.Code)
		if err != nil {
			return err
		}
		if current.Version != session.Version {
			return model.ErrConflict
		}
		return s.commit(ctx, tx, current, stored, data)
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrConflict
	}
	if err != nil {
		return err
	}

	session.Version = stored.Version
	return nil
}

// commit writes next over current inside a WATCH transaction, moving the
// status index entry and adding any new participant index entries
func (s *Storage) commit(ctx context.Context, tx *redis.Tx, current, next *model.Session, data []byte) error {
	code := string(next.Code)
	score, err := tx.ZScore(ctx, orderIndexKey(), code).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(next.Code), data, 0)
		if current.Status != next.Status {
			pipe.ZRem(ctx, statusIndexKey(current.Status), code)
			pipe.ZAdd(ctx, statusIndexKey(next.Status), redis.Z{Score: score, Member: code})
		}
		for _, p := range next.Participants {
			pipe.SAdd(ctx, participantIndexKey(p.PlayerID), code)
		}
		return nil
	})
	return err
}

func (s *Storage) DeleteSession(ctx context.Context, code model.SessionCode) error {
	session, err := s.GetSession(ctx, code)
	if errors.Is(err, model.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(code))
		pipe.ZRem(ctx, orderIndexKey(), string(code))
		pipe.ZRem(ctx, statusIndexKey(session.Status), string(code))
		for _, p := range session.Participants {
			pipe.SRem(ctx, participantIndexKey(p.PlayerID), string(code))
		}
		return nil
	})
	return err
}

func (s *Storage) SessionExists(ctx context.Context, code model.SessionCode) (bool, error) {
	exists, err := s.client.Exists(ctx, sessionKey(code)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

func (s *Storage) ListSessionsByStatus(ctx context.Context, status model.SessionStatus) ([]*model.Session, error) {
	codes, err := s.client.ZRange(ctx, statusIndexKey(status), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	sessions, err := s.loadSessions(ctx, codes)
	if err != nil {
		return nil, err
	}

	// The index is only moved on commit, so re-check against the document
	result := sessions[:0]
	for _, sess := range sessions {
		if sess.Status == status {
			result = append(result, sess)
		}
	}
	return result, nil
}

func (s *Storage) ListSessionsByParticipant(ctx context.Context, playerID model.PlayerID, statuses ...model.SessionStatus) ([]*model.Session, error) {
	members, err := s.client.SMembers(ctx, participantIndexKey(playerID)).Result()
	if err != nil {
		return nil, err
	}
	codes, err := s.inCreationOrder(ctx, members)
	if err != nil {
		return nil, err
	}

	sessions, err := s.loadSessions(ctx, codes)
	if err != nil {
		return nil, err
	}

	var result []*model.Session
	for _, sess := range sessions {
		if sess.GetParticipant(playerID) != nil && storage.MatchesStatus(sess.Status, statuses) {
			result = append(result, sess)
		}
	}
	return result, nil
}

// inCreationOrder sorts codes by their creation sequence, dropping deleted ones
func (s *Storage) inCreationOrder(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.FloatCmd, len(codes))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = pipe.ZScore(ctx, orderIndexKey(), code)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	type scored struct {
		code  string
		score float64
	}
	var ordered []scored
	for i, cmd := range cmds {
		score, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, scored{code: codes[i], score: score})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].score < ordered[j].score })

	result := make([]string, len(ordered))
	for i, o := range ordered {
		result[i] = o.code
	}
	return result, nil
}

// loadSessions fetches session documents in the given order, skipping missing ones
func (s *Storage) loadSessions(ctx context.Context, codes []string) ([]*model.Session, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = sessionKey(model.SessionCode(code))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	sessions := make([]*model.Session, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		sess, err := decodeSession([]byte(str))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *Storage) RenameParticipant(ctx context.Context, playerID model.PlayerID, displayName string) (int, error) {
	codes, err := s.client.SMembers(ctx, participantIndexKey(playerID)).Result()
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, code := range codes {
		ok, err := s.renameIn(ctx, model.SessionCode(code), playerID, displayName)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// renameIn applies a rename to one session, retrying when a concurrent write wins
func (s *Storage) renameIn(ctx context.Context, code model.SessionCode, playerID model.PlayerID, displayName string) (bool, error) {
	key := sessionKey(code)
	for attempt := 0; attempt < s.cfg.RenameAttempts; attempt++ {
		changed := false
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := s.getSession(ctx, tx, code)
			if err != nil {
				return err
			}
			next := current.Clone()
			if !storage.RenameIn(next, playerID, displayName) {
				return nil
			}
			next.Version++
			data, err := json.Marshal(next)
			if err != nil {
				return err
			}
			if err := s.commit(ctx, tx, current, next, data); err != nil {
				return err
			}
			changed = true
			return nil
		}, key)

		switch {
		case err == nil:
			return changed, nil
		case errors.Is(err, model.ErrSessionNotFound):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, err
		}
	}
	return false, fmt.Errorf("renaming in session %s: %w", code, model.ErrConflict)
}

func (s *Storage) PurgeSessions(ctx context.Context, status model.SessionStatus, olderThan time.Time) (int, error) {
	sessions, err := s.ListSessionsByStatus(ctx, status)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, sess := range sessions {
		if !sess.UpdatedAt.Before(olderThan) {
			continue
		}
		if err := s.DeleteSession(ctx, sess.Code); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
