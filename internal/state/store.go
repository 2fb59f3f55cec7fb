package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/features"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	episode_id   TEXT PRIMARY KEY,
	head_id      TEXT,
	layout       TEXT NOT NULL,
	started_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turn_states (
	version_id   TEXT PRIMARY KEY,
	episode_id   TEXT NOT NULL,
	parent_id    TEXT,
	round        INTEGER NOT NULL,
	speaker      TEXT NOT NULL,
	intent       TEXT NOT NULL,
	action_json  TEXT NOT NULL,
	state_vector BLOB NOT NULL,
	done         INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id),
	FOREIGN KEY (parent_id) REFERENCES turn_states(version_id)
);

CREATE INDEX IF NOT EXISTS idx_turn_states_episode ON turn_states(episode_id, created_at);

CREATE TABLE IF NOT EXISTS resolution_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id    TEXT NOT NULL,
	version_id    TEXT,
	round         INTEGER NOT NULL,
	intent        TEXT NOT NULL,
	proposed_json TEXT,
	grounded_json TEXT,
	match_key     TEXT,
	match_objects INTEGER NOT NULL DEFAULT 0,
	outcome       TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists encoded episode states in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already migrated connection.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the schema on db.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region begin-episode
// BeginEpisode registers a new episode encoded with layout.
func (s *Store) BeginEpisode(layout features.Layout) (Episode, error) {
	ep := Episode{
		ID:        uuid.New().String(),
		Layout:    layout,
		StartedAt: time.Now().UTC(),
	}
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return Episode{}, fmt.Errorf("marshal layout: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO episodes (episode_id, head_id, layout, started_at) VALUES (?, NULL, ?, ?)`,
		ep.ID, string(layoutJSON), ep.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Episode{}, fmt.Errorf("insert episode: %w", err)
	}
	return ep, nil
}

// #endregion begin-episode

// #region commit-turn
// CommitTurn appends rec to its episode and moves the head pointer in one
// transaction. VersionID, ParentID and CreatedAt are assigned here.
func (s *Store) CommitTurn(rec TurnRecord) (TurnRecord, error) {
	ep, err := s.GetEpisode(rec.EpisodeID)
	if err != nil {
		return TurnRecord{}, err
	}
	if len(rec.Vector) != ep.Layout.Size {
		return TurnRecord{}, fmt.Errorf("commit turn: vector length %d, layout size %d", len(rec.Vector), ep.Layout.Size)
	}

	rec.VersionID = uuid.New().String()
	rec.ParentID = ep.HeadID
	rec.CreatedAt = time.Now().UTC()
	actionJSON, err := json.Marshal(rec.Action)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("marshal action: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return TurnRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	_, err = tx.Exec(
		`INSERT INTO turn_states (version_id, episode_id, parent_id, round, speaker, intent, action_json, state_vector, done, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, rec.EpisodeID, parentPtr, rec.Round, string(rec.Speaker), rec.Action.Intent,
		string(actionJSON), encodeVector(rec.Vector), boolInt(rec.Done), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("insert turn: %w", err)
	}
	_, err = tx.Exec(`UPDATE episodes SET head_id = ? WHERE episode_id = ?`, rec.VersionID, rec.EpisodeID)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("update head: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return TurnRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion commit-turn

// #region get
// GetEpisode reads one episode with its turn count.
func (s *Store) GetEpisode(id string) (Episode, error) {
	row := s.db.QueryRow(
		`SELECT e.episode_id, e.head_id, e.layout, e.started_at,
		        (SELECT COUNT(*) FROM turn_states t WHERE t.episode_id = e.episode_id)
		 FROM episodes e WHERE e.episode_id = ?`, id,
	)
	ep, err := scanEpisode(row)
	if err != nil {
		return Episode{}, fmt.Errorf("get episode %s: %w", id, err)
	}
	return ep, nil
}

// GetTurn retrieves one turn by version ID.
func (s *Store) GetTurn(versionID string) (TurnRecord, error) {
	row := s.db.QueryRow(
		`SELECT version_id, episode_id, parent_id, round, speaker, action_json, state_vector, done, created_at
		 FROM turn_states WHERE version_id = ?`, versionID,
	)
	rec, err := scanTurn(row)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("get turn %s: %w", versionID, err)
	}
	return rec, nil
}

// #endregion get

// #region list
// ListTurns returns an episode's turns in commit order.
func (s *Store) ListTurns(episodeID string) ([]TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT version_id, episode_id, parent_id, round, speaker, action_json, state_vector, done, created_at
		 FROM turn_states WHERE episode_id = ? ORDER BY created_at ASC, rowid ASC`, episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		rec, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEpisodes returns the most recent episodes.
func (s *Store) ListEpisodes(limit int) ([]Episode, error) {
	rows, err := s.db.Query(
		`SELECT e.episode_id, e.head_id, e.layout, e.started_at,
		        (SELECT COUNT(*) FROM turn_states t WHERE t.episode_id = e.episode_id)
		 FROM episodes e ORDER BY e.started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// #endregion list

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (Episode, error) {
	var ep Episode
	var headID sql.NullString
	var layoutJSON, startedStr string
	if err := row.Scan(&ep.ID, &headID, &layoutJSON, &startedStr, &ep.Turns); err != nil {
		return Episode{}, err
	}
	if headID.Valid {
		ep.HeadID = headID.String
	}
	if err := json.Unmarshal([]byte(layoutJSON), &ep.Layout); err != nil {
		return Episode{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	ep.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	return ep, nil
}

func scanTurn(row scanner) (TurnRecord, error) {
	var rec TurnRecord
	var parentID sql.NullString
	var speaker, actionJSON, createdStr string
	var vecBlob []byte
	var done int
	if err := row.Scan(&rec.VersionID, &rec.EpisodeID, &parentID, &rec.Round, &speaker, &actionJSON, &vecBlob, &done, &createdStr); err != nil {
		return TurnRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	if err := json.Unmarshal([]byte(actionJSON), &rec.Action); err != nil {
		return TurnRecord{}, fmt.Errorf("unmarshal action: %w", err)
	}
	rec.Speaker = dialogue.Speaker(speaker)
	rec.Vector = decodeVector(vecBlob)
	rec.Done = done != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion scan

// #region vector-encoding
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion vector-encoding
