package forge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver for database/sql
)

// SQLiteStore is a SQLite-backed Store implementation, an alternative to
// FileStore for deployments that want transactional guarantees or
// concurrent-reader access stronger than JSON-file-plus-flock gives. It
// runs every write inside a serializable transaction, with a schema
// split across atoms/blocks/witnesses/actions tables.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates a SQLite database at dsn and ensures
// its schema and PRAGMAs are in place.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("forge: open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("forge: ping sqlite store: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA wal_autocheckpoint=1000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("forge: set %s: %w", pragma, err)
		}
	}

	schema := `
CREATE TABLE IF NOT EXISTS atoms (
  idx    INTEGER PRIMARY KEY,
  who    TEXT NOT NULL,
  from_  TEXT NOT NULL,
  action TEXT NOT NULL,
  to_    TEXT NOT NULL,
  whenms INTEGER NOT NULL,
  prev   TEXT NOT NULL,
  proof  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS blocks (
  idx        INTEGER PRIMARY KEY,
  root       TEXT NOT NULL,
  atom_count INTEGER NOT NULL,
  range_from INTEGER NOT NULL,
  range_to   INTEGER NOT NULL,
  prev_block TEXT NOT NULL,
  block_hash TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS witnesses (
  id      INTEGER PRIMARY KEY AUTOINCREMENT,
  root    TEXT NOT NULL,
  seq     INTEGER NOT NULL,
  receipt TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS witnesses_root_seq_uq ON witnesses(root, seq);
CREATE TABLE IF NOT EXISTS actions (
  action_hash TEXT PRIMARY KEY,
  plaintext   TEXT NOT NULL,
  recorded_at INTEGER NOT NULL,
  metadata    TEXT
);
CREATE TABLE IF NOT EXISTS chain_meta (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("forge: apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// AppendAtom inserts atom contiguously at the next index.
func (s *SQLiteStore) AppendAtom(atom Atom) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM atoms`).Scan(&count); err != nil {
		return 0, err
	}

	prevJSON, err := json.Marshal(atom.Prev)
	if err != nil {
		return 0, fmt.Errorf("forge: marshal atom prev: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO atoms(idx, who, from_, action, to_, whenms, prev, proof) VALUES(?,?,?,?,?,?,?,?)`,
		count, atom.Who, atom.From, atom.Action, atom.To, atom.When, string(prevJSON), atom.Proof); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAtom(row rowScanner) (Atom, error) {
	var a Atom
	var prevJSON string
	if err := row.Scan(&a.Who, &a.From, &a.Action, &a.To, &a.When, &prevJSON, &a.Proof); err != nil {
		return Atom{}, err
	}
	if err := json.Unmarshal([]byte(prevJSON), &a.Prev); err != nil {
		return Atom{}, fmt.Errorf("forge: unmarshal atom prev: %w", err)
	}
	return a, nil
}

// GetAtoms returns the half-open range [from, to).
func (s *SQLiteStore) GetAtoms(from, to int) ([]Atom, error) {
	if from < 0 || to < from {
		return nil, ErrOutOfRange
	}
	rows, err := s.db.Query(`SELECT who, from_, action, to_, whenms, prev, proof FROM atoms WHERE idx >= ? AND idx < ? ORDER BY idx ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Atom
	for rows.Next() {
		a, err := scanAtom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != to-from {
		return nil, ErrOutOfRange
	}
	return out, nil
}

// GetAtom returns the atom at global index i.
func (s *SQLiteStore) GetAtom(i int) (Atom, error) {
	row := s.db.QueryRow(`SELECT who, from_, action, to_, whenms, prev, proof FROM atoms WHERE idx = ?`, i)
	a, err := scanAtom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Atom{}, ErrOutOfRange
	}
	return a, err
}

// AtomCount returns the number of atoms recorded so far.
func (s *SQLiteStore) AtomCount() int {
	var count int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM atoms`).Scan(&count)
	return count
}

// LastProof returns the proof of the most recently appended atom, or the
// genesis sentinel if the chain is empty.
func (s *SQLiteStore) LastProof() string {
	var proof string
	err := s.db.QueryRow(`SELECT proof FROM atoms ORDER BY idx DESC LIMIT 1`).Scan(&proof)
	if err != nil {
		return genesisSentinel
	}
	return proof
}

// AppendBlock inserts a sealed block at the next index.
func (s *SQLiteStore) AppendBlock(block Block) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocks`).Scan(&count); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO blocks(idx, root, atom_count, range_from, range_to, prev_block, block_hash, created_at) VALUES(?,?,?,?,?,?,?,?)`,
		count, block.Root, block.AtomCount, block.AtomRange[0], block.AtomRange[1], block.PrevBlock, block.BlockHash, block.CreatedAt); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// GetBlocks returns every sealed block, without Merkle layers.
func (s *SQLiteStore) GetBlocks() ([]Block, error) {
	rows, err := s.db.Query(`SELECT root, atom_count, range_from, range_to, prev_block, block_hash, created_at FROM blocks ORDER BY idx ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.Root, &b.AtomCount, &b.AtomRange[0], &b.AtomRange[1], &b.PrevBlock, &b.BlockHash, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveAction records plaintext for actionHash. This table is the
// plaintext sidecar and must never participate in export.
func (s *SQLiteStore) SaveAction(actionHash, plaintext string, metadata map[string]any) error {
	var metaJSON sql.NullString
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("forge: marshal action metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO actions(action_hash, plaintext, recorded_at, metadata) VALUES(?,?,?,?)
		 ON CONFLICT(action_hash) DO UPDATE SET plaintext=excluded.plaintext, recorded_at=excluded.recorded_at, metadata=excluded.metadata`,
		actionHash, plaintext, time.Now().UnixMilli(), metaJSON)
	return err
}

// GetAction returns the plaintext and metadata recorded for actionHash.
func (s *SQLiteStore) GetAction(actionHash string) (string, map[string]any, bool, error) {
	var plaintext string
	var metaJSON sql.NullString
	err := s.db.QueryRow(`SELECT plaintext, metadata FROM actions WHERE action_hash = ?`, actionHash).Scan(&plaintext, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	var metadata map[string]any
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &metadata); err != nil {
			return "", nil, false, fmt.Errorf("forge: unmarshal action metadata: %w", err)
		}
	}
	return plaintext, metadata, true, nil
}

// GetHistory returns up to limit most recent atoms as a human-facing view.
// limit <= 0 returns the whole history.
func (s *SQLiteStore) GetHistory(limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`SELECT idx, who, from_, action, to_, whenms, proof FROM atoms ORDER BY idx ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var who, from, action, to string
		if err := rows.Scan(&e.Index, &who, &from, &action, &to, &e.When, &e.Proof); err != nil {
			return nil, err
		}
		e.ActionHash = action
		if plaintext, _, found, err := s.GetAction(e.ActionHash); err == nil && found {
			e.ActionText = plaintext
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(all) {
		return all[len(all)-limit:], nil
	}
	return all, nil
}

// SaveWitness appends receipt to the ordered witness list for root.
func (s *SQLiteStore) SaveWitness(root string, receipt WitnessReceipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("forge: marshal witness receipt: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq),-1)+1 FROM witnesses WHERE root = ?`, root).Scan(&seq); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO witnesses(root, seq, receipt) VALUES(?,?,?)`, root, seq, string(data)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadWitnesses returns the ordered receipt list for root, empty if none.
func (s *SQLiteStore) LoadWitnesses(root string) ([]WitnessReceipt, error) {
	rows, err := s.db.Query(`SELECT receipt FROM witnesses WHERE root = ? ORDER BY seq ASC`, root)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WitnessReceipt
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r WitnessReceipt
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("forge: unmarshal witness receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportAll produces the shareable, plaintext-free projection of the
// chain. The actions table never participates in export.
func (s *SQLiteStore) ExportAll() (ExportedChain, error) {
	atoms, err := s.GetAtoms(0, s.AtomCount())
	if err != nil {
		return ExportedChain{}, err
	}
	blocks, err := s.GetBlocks()
	if err != nil {
		return ExportedChain{}, err
	}

	identity := genesisSentinel
	if len(atoms) > 0 {
		identity = atoms[len(atoms)-1].Proof
	}

	return ExportedChain{
		IdentityHash: identity,
		AtomCount:    len(atoms),
		BlockCount:   len(blocks),
		Atoms:        atoms,
		Blocks:       blocks,
		ExportedAt:   time.Now().UnixMilli(),
	}, nil
}

// ImportChain replaces the atoms and blocks with data's.
func (s *SQLiteStore) ImportChain(data ExportedChain) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM atoms`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks`); err != nil {
		return err
	}
	for i, a := range data.Atoms {
		prevJSON, err := json.Marshal(a.Prev)
		if err != nil {
			return fmt.Errorf("forge: marshal atom prev: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO atoms(idx, who, from_, action, to_, whenms, prev, proof) VALUES(?,?,?,?,?,?,?,?)`,
			i, a.Who, a.From, a.Action, a.To, a.When, string(prevJSON), a.Proof); err != nil {
			return err
		}
	}
	for i, b := range data.Blocks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks(idx, root, atom_count, range_from, range_to, prev_block, block_hash, created_at) VALUES(?,?,?,?,?,?,?,?)`,
			i, b.Root, b.AtomCount, b.AtomRange[0], b.AtomRange[1], b.PrevBlock, b.BlockHash, b.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chain_meta(key, value) VALUES('imported_identity_hash', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, data.IdentityHash); err != nil {
		return err
	}

	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
