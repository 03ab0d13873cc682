package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
)

// PostgresStore implements engine.RoundStore with PostgreSQL persistence.
// Rounds and commitments live in separate tables; Save replaces the round's
// commitment set wholesale, which also covers recommits.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool for the DSN and runs the
// idempotent schema migration.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE SEQUENCE IF NOT EXISTS round_ids START 1;

	CREATE TABLE IF NOT EXISTS rounds (
		id BIGINT PRIMARY KEY,
		deadline BIGINT NOT NULL,
		status SMALLINT NOT NULL,
		opener TEXT NOT NULL,
		next_seq BIGINT NOT NULL,
		outcome JSONB,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS commitments (
		round_id BIGINT NOT NULL REFERENCES rounds(id),
		participant TEXT NOT NULL,
		ciphertext BYTEA NOT NULL,
		deposit BIGINT NOT NULL,
		submitted_at BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		escrow TEXT NOT NULL,
		PRIMARY KEY (round_id, participant)
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_status ON rounds(status);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// NextID draws a fresh round id from the shared sequence.
func (s *PostgresStore) NextID() (engine.RoundID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var id uint64
	if err := s.db.QueryRowContext(ctx, "SELECT nextval('round_ids')").Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating round id: %w", err)
	}
	return engine.RoundID(id), nil
}

// Save upserts the round row and rewrites its commitments in one
// transaction.
func (s *PostgresStore) Save(round *engine.Round) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var outcome []byte
	if round.Outcome != nil {
		var err error
		outcome, err = json.Marshal(round.Outcome)
		if err != nil {
			return fmt.Errorf("encoding outcome: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO rounds (id, deadline, status, opener, next_seq, outcome, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (id) DO UPDATE SET
		deadline = EXCLUDED.deadline,
		status = EXCLUDED.status,
		opener = EXCLUDED.opener,
		next_seq = EXCLUDED.next_seq,
		outcome = EXCLUDED.outcome,
		updated_at = NOW()
	`, round.ID, round.Deadline, round.Status, string(round.Opener), round.NextSeq, outcome)
	if err != nil {
		return fmt.Errorf("upserting round: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM commitments WHERE round_id = $1", round.ID); err != nil {
		return fmt.Errorf("clearing commitments: %w", err)
	}
	for _, c := range round.Commitments {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO commitments (round_id, participant, ciphertext, deposit, submitted_at, seq, escrow)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, round.ID, string(c.Participant), c.Ciphertext, c.Deposit, c.SubmittedAt, c.Seq, string(c.Escrow))
		if err != nil {
			return fmt.Errorf("inserting commitment: %w", err)
		}
	}

	return tx.Commit()
}

// Load reconstructs a round with its commitment set.
func (s *PostgresStore) Load(id engine.RoundID) (*engine.Round, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	round := &engine.Round{
		ID:          id,
		Commitments: make(map[engine.ParticipantID]*engine.Commitment),
	}

	var (
		status  uint8
		opener  string
		outcome []byte
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT deadline, status, opener, next_seq, outcome FROM rounds WHERE id = $1
	`, id).Scan(&round.Deadline, &status, &opener, &round.NextSeq, &outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading round: %w", err)
	}
	round.Status = engine.Status(status)
	round.Opener = engine.ParticipantID(opener)
	if len(outcome) > 0 {
		round.Outcome = &engine.Outcome{}
		if err := json.Unmarshal(outcome, round.Outcome); err != nil {
			return nil, fmt.Errorf("decoding outcome: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT participant, ciphertext, deposit, submitted_at, seq, escrow
	FROM commitments WHERE round_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("loading commitments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			participant string
			c           engine.Commitment
			submittedAt uint64
			escrow      string
		)
		if err := rows.Scan(&participant, &c.Ciphertext, &c.Deposit, &submittedAt, &c.Seq, &escrow); err != nil {
			return nil, fmt.Errorf("scanning commitment: %w", err)
		}
		c.Participant = engine.ParticipantID(participant)
		c.SubmittedAt = oracle.SlotID(submittedAt)
		c.Escrow = engine.EscrowHandle(escrow)
		round.Commitments[c.Participant] = &c
	}

	return round, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
