// Package history records generated sessions in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/example/go-scene-voice/internal/scenario"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("session not found")

// Session is one generation: the selections, the script it produced and
// where the rendered audio went.
type Session struct {
	ID        string
	CreatedAt time.Time
	Config    scenario.Config
	Script    *scenario.Script
	Voice     string
	AudioPath string
	Skipped   int
}

// Store wraps the SQLite session table.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open creates the database file and its parent directory if needed.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	if log == nil {
		log = slog.Default()
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    config BLOB NOT NULL,
    script BLOB,
    voice TEXT,
    audio_path TEXT,
    skipped INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a session. A missing ID is generated and a zero
// CreatedAt is set to now; the stored session is returned.
func (s *Store) Save(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.clock()
	}
	sess.CreatedAt = sess.CreatedAt.UTC().Truncate(time.Millisecond)

	cfg, err := json.Marshal(sess.Config)
	if err != nil {
		return Session{}, fmt.Errorf("encode config: %w", err)
	}

	var script []byte
	if sess.Script != nil {
		script, err = json.Marshal(sess.Script)
		if err != nil {
			return Session{}, fmt.Errorf("encode script: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, created_at, config, script, voice, audio_path, skipped)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   config=excluded.config, script=excluded.script, voice=excluded.voice,
		   audio_path=excluded.audio_path, skipped=excluded.skipped`,
		sess.ID, sess.CreatedAt.UnixMilli(), cfg, script, sess.Voice, sess.AudioPath, sess.Skipped)
	if err != nil {
		return Session{}, fmt.Errorf("save session %s: %w", sess.ID, err)
	}

	s.log.Debug("session saved", slog.String("id", sess.ID))

	return sess, nil
}

// Get loads one session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, config, script, voice, audio_path, skipped
		 FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, err
}

// List returns up to limit sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, config, script, voice, audio_path, skipped
		 FROM sessions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Delete removes a session; unknown ids return ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Prune keeps the newest keep sessions and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id NOT IN (
		   SELECT id FROM sessions ORDER BY created_at DESC, id DESC LIMIT ?
		 )`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess      Session
		created   int64
		cfg       []byte
		script    []byte
		voice     sql.NullString
		audioPath sql.NullString
	)
	if err := row.Scan(&sess.ID, &created, &cfg, &script, &voice, &audioPath, &sess.Skipped); err != nil {
		return Session{}, err
	}

	sess.CreatedAt = time.UnixMilli(created).UTC()
	sess.Voice = voice.String
	sess.AudioPath = audioPath.String

	if err := json.Unmarshal(cfg, &sess.Config); err != nil {
		return Session{}, fmt.Errorf("decode config of %s: %w", sess.ID, err)
	}
	if len(script) > 0 {
		sess.Script = &scenario.Script{}
		if err := json.Unmarshal(script, sess.Script); err != nil {
			return Session{}, fmt.Errorf("decode script of %s: %w", sess.ID, err)
		}
	}
	return sess, nil
}
