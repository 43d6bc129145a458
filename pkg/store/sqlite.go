package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteIdentityStore implements IdentityStore using SQLite.
type SQLiteIdentityStore struct {
	db *sql.DB
}

// Compile-time interface check
var _ IdentityStore = (*SQLiteIdentityStore)(nil)

// NewSQLiteIdentityStore creates a new SQLite-backed identity store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
// Creates tables and indexes if they don't exist.
func NewSQLiteIdentityStore(dbPath string) (*SQLiteIdentityStore, error) {
	db, err := sql.Open(sqlDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer, and a ":memory:" database exists per
	// connection, so the pool must stay at one connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteIdentityStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// DB returns the underlying database connection for advanced operations.
func (s *SQLiteIdentityStore) DB() *sql.DB {
	return s.db
}

// initSchema creates the database schema if it doesn't exist.
// Also performs schema migrations for new columns.
func (s *SQLiteIdentityStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		structural_hash TEXT NOT NULL,
		structural_profile TEXT NOT NULL DEFAULT '',
		semantic_hash TEXT,
		vector BLOB,
		version INTEGER NOT NULL,
		state TEXT NOT NULL,
		replaces TEXT,
		replaced_by TEXT,
		duplicate_of TEXT,
		created_at DATETIME NOT NULL,
		state_changed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fingerprints_content ON fingerprints(content_hash);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_fingerprints_content_active
		ON fingerprints(content_hash) WHERE state = 'Active';
	CREATE INDEX IF NOT EXISTS idx_fingerprints_structural ON fingerprints(structural_hash);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_state ON fingerprints(state);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_duplicate_of ON fingerprints(duplicate_of);

	CREATE TABLE IF NOT EXISTS dedup_checkpoints (
		job_id TEXT PRIMARY KEY,
		last_document_id TEXT NOT NULL,
		processed_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// Run schema migrations for new columns
	return s.migrateSchema()
}

// migrateSchema adds new columns to existing tables if they don't exist.
func (s *SQLiteIdentityStore) migrateSchema() error {
	// Check and add source column
	if !s.columnExists("fingerprints", "source") {
		_, err := s.db.Exec("ALTER TABLE fingerprints ADD COLUMN source TEXT DEFAULT NULL")
		if err != nil {
			return fmt.Errorf("failed to add source column: %w", err)
		}
	}

	// Check and add key_phrases column
	if !s.columnExists("fingerprints", "key_phrases") {
		_, err := s.db.Exec("ALTER TABLE fingerprints ADD COLUMN key_phrases TEXT DEFAULT NULL")
		if err != nil {
			return fmt.Errorf("failed to add key_phrases column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table.
func (s *SQLiteIdentityStore) columnExists(tableName, columnName string) bool {
	query := fmt.Sprintf("PRAGMA table_info(%s)", tableName)
	rows, err := s.db.Query(query)
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int

		err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk)
		if err != nil {
			return false
		}

		if name == columnName {
			return true
		}
	}

	return false
}

// recordColumns is the canonical column list used by every record read.
// Migrated columns come last.
const recordColumns = `id, content_hash, structural_hash, structural_profile, semantic_hash, vector,
	version, state, replaces, replaced_by, duplicate_of, created_at, state_changed_at, source, key_phrases`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one fingerprint row in recordColumns order.
func scanRecord(row rowScanner) (*FingerprintRecord, error) {
	var rec FingerprintRecord
	var semanticHash, source sql.NullString
	var state string
	var vectorBytes, phrasesJSON []byte

	err := row.Scan(
		&rec.DocumentID,
		&rec.ContentHash,
		&rec.StructuralHash,
		&rec.StructuralProfile,
		&semanticHash,
		&vectorBytes,
		&rec.Version,
		&state,
		&rec.Replaces,
		&rec.ReplacedBy,
		&rec.DuplicateOf,
		&rec.CreatedAt,
		&rec.StateChangedAt,
		&source,
		&phrasesJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.State = DocumentState(state)
	rec.SemanticHash = semanticHash.String
	rec.Source = source.String
	rec.Vector = deserializeVector(vectorBytes)

	if len(phrasesJSON) > 0 {
		if err := json.Unmarshal(phrasesJSON, &rec.KeyPhrases); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key phrases: %w", err)
		}
	}

	return &rec, nil
}

// serializeVector encodes a vector as little-endian float32 bytes.
func serializeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// deserializeVector decodes little-endian float32 bytes back into a vector.
func deserializeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}

// insertRecord writes one fingerprint row inside tx. A unique-index violation
// is reported as *ConflictError.
func insertRecord(ctx context.Context, tx *sql.Tx, rec *FingerprintRecord) error {
	phrasesJSON, err := json.Marshal(rec.KeyPhrases)
	if err != nil {
		return fmt.Errorf("failed to marshal key phrases: %w", err)
	}

	query := `
		INSERT INTO fingerprints (id, content_hash, structural_hash, structural_profile,
			semantic_hash, vector, version, state, replaces, replaced_by, duplicate_of,
			created_at, state_changed_at, source, key_phrases)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		rec.DocumentID,
		rec.ContentHash,
		rec.StructuralHash,
		rec.StructuralProfile,
		rec.SemanticHash,
		serializeVector(rec.Vector),
		rec.Version,
		string(rec.State),
		rec.Replaces,
		rec.ReplacedBy,
		rec.DuplicateOf,
		rec.CreatedAt,
		rec.StateChangedAt,
		rec.Source,
		phrasesJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{DocumentID: rec.DocumentID, Reason: "write raced a conflicting record"}
		}
		return fmt.Errorf("failed to insert fingerprint: %w", err)
	}
	return nil
}

// isUniqueViolation detects constraint failures across both SQLite drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// getRecordTx reads one record by id inside tx, returning (nil, nil) when absent.
func getRecordTx(ctx context.Context, tx *sql.Tx, id string) (*FingerprintRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM fingerprints WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return rec, nil
}

// Put persists a brand-new Active record. Missing fields default the way a
// freshly created record would: version 1, state Active, timestamps now.
func (s *SQLiteIdentityStore) Put(ctx context.Context, rec *FingerprintRecord) error {
	if rec.DocumentID == "" {
		rec.DocumentID = uuid.New().String()
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.StateChangedAt.IsZero() {
		rec.StateChangedAt = rec.CreatedAt
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	if rec.State == "" {
		rec.State = StateActive
	}
	if rec.State != StateActive {
		return fmt.Errorf("put requires state Active, got %s", rec.State)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	// Content-hash uniqueness among Active records. The partial unique index
	// backs this up at the storage level; the pre-check names the record the
	// write conflicts with.
	var existingID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM fingerprints WHERE content_hash = ? AND state = 'Active'`,
		rec.ContentHash).Scan(&existingID)
	if err == nil {
		return &ConflictError{DocumentID: existingID, Reason: "content hash already held by an Active record"}
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check content hash uniqueness: %w", err)
	}

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByDocumentID retrieves a record by ID, returning (nil, nil) when absent.
func (s *SQLiteIdentityStore) GetByDocumentID(ctx context.Context, id string) (*FingerprintRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM fingerprints WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return rec, nil
}

// GetByContentHash returns the Active record holding the given content hash.
// At most one can exist; (nil, nil) means no Active record has this hash.
func (s *SQLiteIdentityStore) GetByContentHash(ctx context.Context, hash string) (*FingerprintRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM fingerprints WHERE content_hash = ? AND state = 'Active'`, hash)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint by content hash: %w", err)
	}
	return rec, nil
}

// GetByStructuralHash returns all records with the given structural hash,
// most recently created first.
func (s *SQLiteIdentityStore) GetByStructuralHash(ctx context.Context, hash string) ([]*FingerprintRecord, error) {
	// rowid breaks created_at ties in insertion order
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM fingerprints WHERE structural_hash = ?
		 ORDER BY created_at DESC, rowid DESC`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query by structural hash: %w", err)
	}
	defer rows.Close()

	var records []*FingerprintRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprints: %w", err)
	}
	return records, nil
}

// ListLineage returns the replaces chain containing id, oldest first.
// The chain is traced backward to its root and then forward, with visited
// sets so a corrupted chain can never loop.
func (s *SQLiteIdentityStore) ListLineage(ctx context.Context, id string) ([]*FingerprintRecord, error) {
	rec, err := s.GetByDocumentID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	// Trace backward to the root
	visited := map[string]bool{rec.DocumentID: true}
	root := rec
	for root.Replaces != nil {
		parent, err := s.GetByDocumentID(ctx, *root.Replaces)
		if err != nil {
			return nil, err
		}
		if parent == nil || visited[parent.DocumentID] {
			break
		}
		visited[parent.DocumentID] = true
		root = parent
	}

	// Trace forward from the root
	chain := []*FingerprintRecord{root}
	seen := map[string]bool{root.DocumentID: true}
	current := root
	for current.ReplacedBy != nil {
		next, err := s.GetByDocumentID(ctx, *current.ReplacedBy)
		if err != nil {
			return nil, err
		}
		if next == nil || seen[next.DocumentID] {
			break
		}
		seen[next.DocumentID] = true
		chain = append(chain, next)
		current = next
	}

	return chain, nil
}

// ApplyUpdate supersedes matchedID with newRec in one transaction. The new
// record's version is derived from the matched record inside the transaction,
// so a version gap or a branched chain can never be written.
func (s *SQLiteIdentityStore) ApplyUpdate(ctx context.Context, newRec *FingerprintRecord, matchedID string, expectedState DocumentState, expectedVersion int) error {
	if newRec.DocumentID == "" {
		newRec.DocumentID = uuid.New().String()
	}
	if newRec.DocumentID == matchedID {
		return &ConflictError{DocumentID: matchedID, Reason: "successor cannot replace itself"}
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	matched, err := getRecordTx(ctx, tx, matchedID)
	if err != nil {
		return err
	}
	if matched == nil {
		return &ConflictError{DocumentID: matchedID, Reason: "matched record no longer exists"}
	}
	if matched.State != expectedState || matched.Version != expectedVersion {
		return &ConflictError{
			DocumentID:      matchedID,
			Reason:          "concurrent lineage mutation",
			ExpectedState:   expectedState,
			ActualState:     matched.State,
			ExpectedVersion: expectedVersion,
			ActualVersion:   matched.Version,
		}
	}
	if matched.State != StateActive {
		return &ConflictError{DocumentID: matchedID, Reason: "matched record is not Active"}
	}
	if matched.ReplacedBy != nil {
		return &ConflictError{DocumentID: matchedID, Reason: "matched record already superseded"}
	}

	// A successor id that already exists could close a lineage cycle.
	existing, err := getRecordTx(ctx, tx, newRec.DocumentID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ConflictError{DocumentID: newRec.DocumentID, Reason: "successor id already exists"}
	}

	// Supersede the matched record first so the successor can legally take
	// over its content hash.
	res, err := tx.ExecContext(ctx,
		`UPDATE fingerprints SET state = ?, replaced_by = ?, state_changed_at = ?
		 WHERE id = ? AND state = ? AND version = ?`,
		string(StateSuperseded), newRec.DocumentID, now,
		matchedID, string(expectedState), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to supersede matched record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &ConflictError{DocumentID: matchedID, Reason: "concurrent lineage mutation"}
	}

	newRec.Version = matched.Version + 1
	newRec.State = StateActive
	newRec.Replaces = &matched.DocumentID
	newRec.ReplacedBy = nil
	newRec.DuplicateOf = nil
	if newRec.CreatedAt.IsZero() {
		newRec.CreatedAt = now
	}
	newRec.StateChangedAt = newRec.CreatedAt

	if err := insertRecord(ctx, tx, newRec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update transition: %w", err)
	}
	return nil
}

// resolveDuplicateTarget flattens one Duplicate hop and verifies the retained
// record can legally be a duplicate target. With the flattening invariant
// held on every prior write, one hop always reaches a non-Duplicate record.
func resolveDuplicateTarget(ctx context.Context, tx *sql.Tx, duplicateOf string) (*FingerprintRecord, error) {
	target, err := getRecordTx(ctx, tx, duplicateOf)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &ConflictError{DocumentID: duplicateOf, Reason: "duplicate target no longer exists"}
	}

	if target.State == StateDuplicate {
		if target.DuplicateOf == nil {
			return nil, &ConflictError{DocumentID: duplicateOf, Reason: "duplicate target has no retained original"}
		}
		target, err = getRecordTx(ctx, tx, *target.DuplicateOf)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return nil, &ConflictError{DocumentID: duplicateOf, Reason: "retained original no longer exists"}
		}
	}

	if target.State != StateActive && target.State != StateSuperseded {
		return nil, &ConflictError{
			DocumentID: target.DocumentID,
			Reason:     fmt.Sprintf("duplicate target is %s", target.State),
		}
	}
	return target, nil
}

// PutDuplicate persists a new reference record pointing at duplicateOf.
// The target record itself is left untouched.
func (s *SQLiteIdentityStore) PutDuplicate(ctx context.Context, rec *FingerprintRecord, duplicateOf string) error {
	if rec.DocumentID == "" {
		rec.DocumentID = uuid.New().String()
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.StateChangedAt = rec.CreatedAt
	if rec.Version == 0 {
		rec.Version = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	retained, err := resolveDuplicateTarget(ctx, tx, duplicateOf)
	if err != nil {
		return err
	}

	rec.State = StateDuplicate
	rec.DuplicateOf = &retained.DocumentID
	rec.Replaces = nil
	rec.ReplacedBy = nil

	if err := insertRecord(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit duplicate record: %w", err)
	}
	return nil
}

// MarkDuplicate transitions an existing record to Duplicate under optimistic
// concurrency.
func (s *SQLiteIdentityStore) MarkDuplicate(ctx context.Context, id string, duplicateOf string, expectedState DocumentState, expectedVersion int) error {
	if id == duplicateOf {
		return &ConflictError{DocumentID: id, Reason: "record cannot be a duplicate of itself"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getRecordTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return &ConflictError{DocumentID: id, Reason: "record no longer exists"}
	}
	if current.State == StateDeleted {
		return &ConflictError{DocumentID: id, Reason: "record is Deleted"}
	}
	if current.State != expectedState || current.Version != expectedVersion {
		return &ConflictError{
			DocumentID:      id,
			Reason:          "concurrent state mutation",
			ExpectedState:   expectedState,
			ActualState:     current.State,
			ExpectedVersion: expectedVersion,
			ActualVersion:   current.Version,
		}
	}

	retained, err := resolveDuplicateTarget(ctx, tx, duplicateOf)
	if err != nil {
		return err
	}
	if retained.DocumentID == id {
		return &ConflictError{DocumentID: id, Reason: "record cannot be a duplicate of itself"}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE fingerprints SET state = ?, duplicate_of = ?, state_changed_at = ?
		 WHERE id = ? AND state = ? AND version = ?`,
		string(StateDuplicate), retained.DocumentID, time.Now(),
		id, string(expectedState), expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &ConflictError{DocumentID: id, Reason: "concurrent state mutation"}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit duplicate transition: %w", err)
	}
	return nil
}

// MarkDeleted transitions the given records to Deleted in one transaction and
// returns the ids that actually changed. Records already Deleted stay
// untouched, which keeps repeated deletes idempotent.
func (s *SQLiteIdentityStore) MarkDeleted(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM fingerprints WHERE id IN (%s) AND state != 'Deleted'`, inClause),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletable records: %w", err)
	}
	var affected []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record id: %w", err)
		}
		affected = append(affected, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating deletable records: %w", err)
	}
	rows.Close()

	if len(affected) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE fingerprints SET state = 'Deleted', state_changed_at = ?
		 WHERE id IN (%s) AND state != 'Deleted'`, inClause),
		append([]interface{}{time.Now()}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to mark records deleted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete transition: %w", err)
	}
	return affected, nil
}

// FindDuplicatesOf returns records whose duplicateOf points at any of ids.
func (s *SQLiteIdentityStore) FindDuplicatesOf(ctx context.Context, ids []string) ([]*FingerprintRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+recordColumns+` FROM fingerprints WHERE duplicate_of IN (%s)
		 ORDER BY created_at`, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer rows.Close()

	var records []*FingerprintRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicates: %w", err)
	}
	return records, nil
}

// ListActive pages through Active records in document-id order, which is what
// lets bulk jobs checkpoint by last-processed id.
func (s *SQLiteIdentityStore) ListActive(ctx context.Context, afterID string, limit int) ([]*FingerprintRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM fingerprints
		 WHERE state = 'Active' AND id > ?
		 ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active records: %w", err)
	}
	defer rows.Close()

	var records []*FingerprintRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active records: %w", err)
	}
	return records, nil
}

// CountByState returns the record count per lifecycle state.
func (s *SQLiteIdentityStore) CountByState(ctx context.Context) (map[DocumentState]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM fingerprints GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[DocumentState]int64)
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[DocumentState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (s *SQLiteIdentityStore) Close() error {
	return s.db.Close()
}
