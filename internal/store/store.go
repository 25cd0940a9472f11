package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/valpere/wordalign/internal"
	"github.com/valpere/wordalign/internal/align"
	"github.com/valpere/wordalign/internal/corpus"
	"github.com/valpere/wordalign/internal/ttable"
)

// ErrModelNotFound is returned when no model is stored for a direction and
// variant.
var ErrModelNotFound = errors.New("model not found")

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases consistent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		variant TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		pairs INTEGER NOT NULL,
		null_probability REAL NOT NULL,
		null_insertion REAL NOT NULL DEFAULT 0,
		sources INTEGER NOT NULL,
		entries INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(direction, variant)
	);

	-- seq preserves the insertion order of sources and of targets within a row
	CREATE TABLE IF NOT EXISTS translation_probs (
		model_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		probability REAL NOT NULL,
		PRIMARY KEY (model_id, seq),
		FOREIGN KEY (model_id) REFERENCES models(id)
	);

	CREATE TABLE IF NOT EXISTS distortion_probs (
		model_id TEXT NOT NULL,
		source_pos INTEGER NOT NULL,
		target_len INTEGER NOT NULL,
		source_len INTEGER NOT NULL,
		target_pos INTEGER NOT NULL,
		probability REAL NOT NULL,
		PRIMARY KEY (model_id, source_len, target_len, source_pos, target_pos),
		FOREIGN KEY (model_id) REFERENCES models(id)
	);

	CREATE TABLE IF NOT EXISTS fertility_probs (
		model_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		token TEXT NOT NULL,
		fertility INTEGER NOT NULL,
		probability REAL NOT NULL,
		PRIMARY KEY (model_id, seq, fertility),
		FOREIGN KEY (model_id) REFERENCES models(id)
	);

	-- training_runs keeps a history of training jobs, including failed ones
	CREATE TABLE IF NOT EXISTS training_runs (
		id TEXT PRIMARY KEY,
		direction TEXT NOT NULL,
		variant TEXT NOT NULL,
		iterations INTEGER NOT NULL,
		pairs INTEGER NOT NULL,
		source_vocab INTEGER NOT NULL,
		target_vocab INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_models_lookup ON models(direction, variant);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON training_runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ModelInfo describes a stored model without loading its tables.
type ModelInfo struct {
	ID         string
	Direction  string
	Variant    string
	Iterations int
	Pairs      int
	Sources    int
	Entries    int
	CreatedAt  time.Time
}

// SaveModel stores m under (dir, m.Variant), replacing any model already
// there. The write is a single transaction.
func (s *Store) SaveModel(ctx context.Context, dir corpus.Direction, m *align.Model) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteModel(ctx, tx, dir.String(), m.Name()); err != nil && !errors.Is(err, ErrModelNotFound) {
		return "", err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO models (id, direction, variant, iterations, pairs, null_probability, null_insertion, sources, entries, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, dir.String(), m.Name(), m.Iterations, m.Pairs, m.NullProbability, m.NullInsertion, m.Table.Len(), m.Table.Entries(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert model: %w", err)
	}

	if err := saveTranslations(ctx, tx, id, m.Table); err != nil {
		return "", err
	}
	if m.Distortion != nil {
		if err := saveDistortion(ctx, tx, id, m.Distortion); err != nil {
			return "", err
		}
	}
	if m.Fertility != nil {
		if err := saveFertility(ctx, tx, id, m.Fertility); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit model: %w", err)
	}

	s.logger.Info("model saved",
		zap.String("direction", dir.String()),
		zap.String("variant", m.Name()),
		zap.String("id", id),
		zap.Int("entries", m.Table.Entries()),
	)
	return id, nil
}

func saveTranslations(ctx context.Context, tx *sql.Tx, id string, t *ttable.Table) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO translation_probs (model_id, seq, source, target, probability) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare translation insert: %w", err)
	}
	defer stmt.Close()

	seq := 0
	for _, src := range t.Sources() {
		for _, c := range t.Candidates(src) {
			if _, err := stmt.ExecContext(ctx, id, seq, src, c.Target, c.Probability); err != nil {
				return fmt.Errorf("failed to insert translation %q->%q: %w", src, c.Target, err)
			}
			seq++
		}
	}
	return nil
}

func saveDistortion(ctx context.Context, tx *sql.Tx, id string, d *ttable.DistortionTable) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO distortion_probs (model_id, source_pos, target_len, source_len, target_pos, probability) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare distortion insert: %w", err)
	}
	defer stmt.Close()

	for _, k := range d.Keys() {
		row, _ := d.Row(k)
		for i, p := range row {
			if _, err := stmt.ExecContext(ctx, id, k.SourcePos, k.TargetLen, k.SourceLen, i+1, p); err != nil {
				return fmt.Errorf("failed to insert distortion %+v: %w", k, err)
			}
		}
	}
	return nil
}

func saveFertility(ctx context.Context, tx *sql.Tx, id string, f *ttable.FertilityTable) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fertility_probs (model_id, seq, token, fertility, probability) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare fertility insert: %w", err)
	}
	defer stmt.Close()

	for seq, tok := range f.Tokens() {
		dist, _ := f.Distribution(tok)
		for phi, p := range dist {
			if _, err := stmt.ExecContext(ctx, id, seq, tok, phi, p); err != nil {
				return fmt.Errorf("failed to insert fertility %q: %w", tok, err)
			}
		}
	}
	return nil
}

// LoadModel reads the model stored for (dir, variant). Its tables come back
// frozen with the original insertion order.
func (s *Store) LoadModel(ctx context.Context, dir corpus.Direction, variant align.Variant) (*align.Model, error) {
	var id string
	m := &align.Model{Variant: variant}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, iterations, pairs, null_probability, null_insertion FROM models WHERE direction = ? AND variant = ?`,
		dir.String(), variant.ModelName()).Scan(&id, &m.Iterations, &m.Pairs, &m.NullProbability, &m.NullInsertion)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrModelNotFound, dir, variant.ModelName())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}

	if m.Table, err = s.loadTranslations(ctx, id); err != nil {
		return nil, err
	}
	if variant >= align.Distortion {
		if m.Distortion, err = s.loadDistortion(ctx, id); err != nil {
			return nil, err
		}
	}
	if variant == align.Fertility {
		if m.Fertility, err = s.loadFertility(ctx, id); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (s *Store) loadTranslations(ctx context.Context, id string) (*ttable.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, target, probability FROM translation_probs WHERE model_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	t := ttable.New()
	for rows.Next() {
		var src, tgt string
		var p float64
		if err := rows.Scan(&src, &tgt, &p); err != nil {
			return nil, err
		}
		if err := t.Set(src, tgt, p); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	t.Freeze()
	return t, nil
}

func (s *Store) loadDistortion(ctx context.Context, id string) (*ttable.DistortionTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_pos, target_len, source_len, target_pos, probability FROM distortion_probs
		 WHERE model_id = ? ORDER BY source_len, target_len, source_pos, target_pos`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query distortion: %w", err)
	}
	defer rows.Close()

	d := ttable.NewDistortionTable()
	var cur ttable.DistortionKey
	var row []float64
	flush := func() error {
		if row == nil {
			return nil
		}
		return d.Set(cur, row)
	}

	for rows.Next() {
		var k ttable.DistortionKey
		var pos int
		var p float64
		if err := rows.Scan(&k.SourcePos, &k.TargetLen, &k.SourceLen, &pos, &p); err != nil {
			return nil, err
		}
		if k != cur || row == nil {
			if err := flush(); err != nil {
				return nil, err
			}
			cur, row = k, make([]float64, k.TargetLen)
		}
		if pos >= 1 && pos <= len(row) {
			row[pos-1] = p
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	d.Freeze()
	return d, nil
}

func (s *Store) loadFertility(ctx context.Context, id string) (*ttable.FertilityTable, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token, fertility, probability FROM fertility_probs WHERE model_id = ? ORDER BY seq, fertility`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query fertility: %w", err)
	}
	defer rows.Close()

	f := ttable.NewFertilityTable()
	var cur string
	var dist []float64
	flush := func() error {
		if dist == nil {
			return nil
		}
		return f.Set(cur, dist)
	}

	for rows.Next() {
		var tok string
		var phi int
		var p float64
		if err := rows.Scan(&tok, &phi, &p); err != nil {
			return nil, err
		}
		if tok != cur || dist == nil {
			if err := flush(); err != nil {
				return nil, err
			}
			cur, dist = tok, nil
		}
		dist = append(dist, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	f.Freeze()
	return f, nil
}

// LoadAll loads every stored model keyed by direction, then variant.
func (s *Store) LoadAll(ctx context.Context) (map[corpus.Direction]map[align.Variant]*align.Model, error) {
	infos, err := s.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[corpus.Direction]map[align.Variant]*align.Model)
	for _, info := range infos {
		dir, err := corpus.ParseDirection(info.Direction)
		if err != nil {
			s.logger.Warn("skipping model with invalid direction", zap.String("id", info.ID), zap.Error(err))
			continue
		}
		variant, err := align.ParseVariant(info.Variant)
		if err != nil {
			s.logger.Warn("skipping model with invalid variant", zap.String("id", info.ID), zap.Error(err))
			continue
		}

		m, err := s.LoadModel(ctx, dir, variant)
		if err != nil {
			return nil, err
		}
		if out[dir] == nil {
			out[dir] = make(map[align.Variant]*align.Model)
		}
		out[dir][variant] = m
	}
	return out, nil
}

// ListModels returns all stored models ordered by direction and variant.
func (s *Store) ListModels(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, direction, variant, iterations, pairs, sources, entries, created_at FROM models ORDER BY direction, variant`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ModelInfo
	for rows.Next() {
		var m ModelInfo
		if err := rows.Scan(&m.ID, &m.Direction, &m.Variant, &m.Iterations, &m.Pairs, &m.Sources, &m.Entries, &m.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// DeleteModel removes the model stored for (dir, variant) and its tables.
func (s *Store) DeleteModel(ctx context.Context, dir corpus.Direction, variant align.Variant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteModel(ctx, tx, dir.String(), variant.ModelName()); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteModel(ctx context.Context, tx *sql.Tx, direction, variant string) error {
	var id string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM models WHERE direction = ? AND variant = ?`, direction, variant).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s/%s", ErrModelNotFound, direction, variant)
	}
	if err != nil {
		return fmt.Errorf("failed to query model: %w", err)
	}

	for _, table := range []string{"translation_probs", "distortion_probs", "fertility_probs", "models"} {
		col := "model_id"
		if table == "models" {
			col = "id"
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+col+` = ?`, id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return nil
}

// SaveRun records a training run. An empty ID is replaced by a new UUID.
func (s *Store) SaveRun(ctx context.Context, run internal.TrainingRun) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, direction, variant, iterations, pairs, source_vocab, target_vocab, duration_ms, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Direction, run.Variant, run.Iterations, run.Pairs, run.SourceVocab, run.TargetVocab,
		run.Duration.Milliseconds(), run.Status, run.Error, run.Timestamp)
	if err != nil {
		return "", fmt.Errorf("failed to save training run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent training runs first. limit <= 0 returns
// all of them.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]internal.TrainingRun, error) {
	query := `SELECT id, direction, variant, iterations, pairs, source_vocab, target_vocab, duration_ms, status, COALESCE(error, ''), created_at FROM training_runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []internal.TrainingRun
	for rows.Next() {
		var r internal.TrainingRun
		var ms int64
		if err := rows.Scan(&r.ID, &r.Direction, &r.Variant, &r.Iterations, &r.Pairs, &r.SourceVocab, &r.TargetVocab, &ms, &r.Status, &r.Error, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
