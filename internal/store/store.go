package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool the store needs. Narrow on purpose so
// tests can substitute hand-rolled mocks.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Session is the durable session document. TrackIDs stays empty while the
// session is live; the final queue order is archived into it exactly once,
// when the session ends.
type Session struct {
	ID        string     `json:"id"`
	CreatorID string     `json:"creatorId"`
	Name      string     `json:"name"`
	IsLive    bool       `json:"isLive"`
	TrackIDs  []string   `json:"trackIds"`
	CreatedAt time.Time  `json:"createdAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, creatorID, name string) (*Session, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("store: create session begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var created time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (id, creator_id, name)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, id, creatorID, name).Scan(&created)
	if err != nil {
		return nil, fmt.Errorf("store: insert session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO session_collaborators (session_id, user_id)
		VALUES ($1, $2)
	`, id, creatorID)
	if err != nil {
		return nil, fmt.Errorf("store: insert creator collaborator: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: create session commit: %w", err)
	}

	return &Session{
		ID:        id,
		CreatorID: creatorID,
		Name:      name,
		IsLive:    true,
		TrackIDs:  []string{},
		CreatedAt: created,
	}, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, creator_id, name, is_live, track_ids, created_at, ended_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&sess.ID, &sess.CreatorID, &sess.Name, &sess.IsLive, &sess.TrackIDs, &sess.CreatedAt, &sess.EndedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Collaborators(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id
		FROM session_collaborators
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: collaborators: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("store: scan collaborator: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) IsCollaborator(ctx context.Context, sessionID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var u string
	err := s.db.QueryRow(ctx, `
		SELECT user_id
		FROM session_collaborators
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID).Scan(&u)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) AddCollaborator(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_collaborators (session_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("store: add collaborator: %w", err)
	}
	return nil
}

// ArchiveQueueAndEndSession flips the session non-live and stores the final
// queue order. The is_live guard makes it idempotent: ending an ended
// session touches nothing.
func (s *Store) ArchiveQueueAndEndSession(ctx context.Context, sessionID string, orderedTrackIDs []string) error {
	if orderedTrackIDs == nil {
		orderedTrackIDs = []string{}
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("store: end session begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET is_live = FALSE, track_ids = $2, ended_at = now()
		WHERE id = $1 AND is_live
	`, sessionID, orderedTrackIDs)
	if err != nil {
		return fmt.Errorf("store: archive session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM session_invites WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("store: delete invites: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: end session commit: %w", err)
	}
	return nil
}

// CreateInvite issues a one-off token a user can redeem to become a
// collaborator.
func (s *Store) CreateInvite(ctx context.Context, sessionID string) (string, error) {
	token := newToken()
	_, err := s.db.Exec(ctx, `
		INSERT INTO session_invites (token, session_id)
		VALUES ($1, $2)
	`, token, sessionID)
	if err != nil {
		return "", fmt.Errorf("store: create invite: %w", err)
	}
	return token, nil
}

// ConsumeInvite redeems a token, deleting it, and returns the session it
// belonged to. An unknown token surfaces as pgx.ErrNoRows.
func (s *Store) ConsumeInvite(ctx context.Context, token string) (string, error) {
	var sessionID string
	err := s.db.QueryRow(ctx, `
		DELETE FROM session_invites
		WHERE token = $1
		RETURNING session_id
	`, token).Scan(&sessionID)
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func newToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("store: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
