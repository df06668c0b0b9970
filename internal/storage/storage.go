package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Mohd-sharique79/cell-traceability-system/internal/logger"
	"github.com/Mohd-sharique79/cell-traceability-system/internal/models"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DB is the database handle - initialized by InitDatabase
var DB *sql.DB

// Sentinel errors distinguishing business failures from storage failures.
// Handlers map these to HTTP statuses; everything else is internal.
var (
	// ErrNotFound reports an unknown kit serial number or session id.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a kit or cell serial number that already exists.
	ErrConflict = errors.New("serial number already exists")
)

// AllocateKit creates a kit and binds the given cells to it in a single
// transaction. On any failure the whole allocation rolls back, leaving no
// partial kit/cell state. Returns the new kit's surrogate id.
func AllocateKit(kitSerialNumber string, cellSerialNumbers []string) (int64, error) {
	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var kitID int64
	err = tx.QueryRow(
		`INSERT INTO kits (kit_serial_number, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $3) RETURNING id`,
		kitSerialNumber, models.KitStatusAllocated, now).Scan(&kitID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("kit %q: %w", kitSerialNumber, ErrConflict)
		}
		return 0, fmt.Errorf("failed to insert kit: %w", err)
	}

	// Prepare statement within transaction
	stmt, err := tx.Prepare(
		`INSERT INTO cells (cell_serial_number, kit_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare cell insert statement: %w", err)
	}
	defer stmt.Close()

	for _, cellSerialNumber := range cellSerialNumbers {
		if _, err := stmt.Exec(cellSerialNumber, kitID, models.KitStatusAllocated, now); err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("cell %q: %w", cellSerialNumber, ErrConflict)
			}
			return 0, fmt.Errorf("failed to insert cell: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocation: %w", err)
	}

	return kitID, nil
}

// GetKitBySerial returns the kit and its cells' serial numbers in allocation
// order, or ErrNotFound.
func GetKitBySerial(kitSerialNumber string) (models.Kit, []string, error) {
	var kit models.Kit
	err := DB.QueryRow(
		`SELECT id, kit_serial_number, status, created_at, updated_at
		 FROM kits WHERE kit_serial_number = $1`,
		kitSerialNumber).Scan(&kit.ID, &kit.KitSerialNumber, &kit.Status, &kit.CreatedAt, &kit.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Kit{}, nil, fmt.Errorf("kit %q: %w", kitSerialNumber, ErrNotFound)
		}
		return models.Kit{}, nil, fmt.Errorf("failed to query kit: %w", err)
	}

	rows, err := DB.Query(
		`SELECT cell_serial_number FROM cells WHERE kit_id = $1 ORDER BY id`, kit.ID)
	if err != nil {
		return models.Kit{}, nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var cells []string
	for rows.Next() {
		var serial string
		if err := rows.Scan(&serial); err != nil {
			return models.Kit{}, nil, fmt.Errorf("failed to scan cell row: %w", err)
		}
		cells = append(cells, serial)
	}
	if err := rows.Err(); err != nil {
		return models.Kit{}, nil, fmt.Errorf("failed to iterate cells: %w", err)
	}

	return kit, cells, nil
}

// ListKits returns all kits, newest first.
func ListKits() ([]models.Kit, error) {
	rows, err := DB.Query(
		`SELECT id, kit_serial_number, status, created_at, updated_at
		 FROM kits ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query kits: %w", err)
	}
	defer rows.Close()

	var kits []models.Kit
	for rows.Next() {
		var kit models.Kit
		if err := rows.Scan(&kit.ID, &kit.KitSerialNumber, &kit.Status, &kit.CreatedAt, &kit.UpdatedAt); err != nil {
			logger.Error("failed to scan kit row", map[string]interface{}{"error": err.Error()})
			continue
		}
		kits = append(kits, kit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kits: %w", err)
	}

	return kits, nil
}

// CreateSession opens a validation session against the kit with the given
// serial number. Returns the kit's id for the response payload, or
// ErrNotFound when the kit is unknown. No session row is created in that
// case.
func CreateSession(sessionID, kitSerialNumber, operatorName string) (int64, error) {
	var kitID int64
	err := DB.QueryRow(
		`SELECT id FROM kits WHERE kit_serial_number = $1`, kitSerialNumber).Scan(&kitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("kit %q: %w", kitSerialNumber, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to query kit: %w", err)
	}

	_, err = DB.Exec(
		`INSERT INTO validation_sessions (session_id, kit_id, operator_name, status, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, kitID, operatorName, models.SessionInProgress, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	return kitID, nil
}

// GetSession returns the session joined with its kit's serial number, or
// ErrNotFound.
func GetSession(sessionID string) (models.ValidationSession, error) {
	var s models.ValidationSession
	var completedAt sql.NullTime
	err := DB.QueryRow(
		`SELECT vs.id, vs.session_id, vs.kit_id, k.kit_serial_number,
		        vs.operator_name, vs.status, vs.started_at, vs.completed_at
		 FROM validation_sessions vs
		 JOIN kits k ON vs.kit_id = k.id
		 WHERE vs.session_id = $1`,
		sessionID).Scan(&s.ID, &s.SessionID, &s.KitID, &s.KitSerialNumber,
		&s.OperatorName, &s.Status, &s.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ValidationSession{}, fmt.Errorf("session %q: %w", sessionID, ErrNotFound)
		}
		return models.ValidationSession{}, fmt.Errorf("failed to query session: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return s, nil
}

// CompleteSession transitions the session to completed and stamps the
// completion time. Completing an already-completed session is a no-op that
// preserves the original completion timestamp. Returns ErrNotFound for an
// unknown session id.
func CompleteSession(sessionID string) error {
	session, err := GetSession(sessionID)
	if err != nil {
		return err
	}
	if session.Status == models.SessionCompleted {
		return nil
	}

	_, err = DB.Exec(
		`UPDATE validation_sessions SET status = $1, completed_at = $2 WHERE session_id = $3`,
		models.SessionCompleted, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	return nil
}

// CellInKit reports whether the cell serial number is bound to the given
// kit. The match is exact and case-sensitive.
func CellInKit(cellSerialNumber string, kitID int64) (bool, error) {
	var one int
	err := DB.QueryRow(
		`SELECT 1 FROM cells WHERE cell_serial_number = $1 AND kit_id = $2`,
		cellSerialNumber, kitID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query cell membership: %w", err)
	}
	return true, nil
}

// AppendValidationLog records one scan outcome. Every scan appends a new
// row; duplicates within a session are expected.
func AppendValidationLog(sessionID, cellSerialNumber, result string) error {
	_, err := DB.Exec(
		`INSERT INTO validation_logs (session_id, cell_serial_number, validation_result, scanned_at)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, cellSerialNumber, result, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert validation log: %w", err)
	}
	return nil
}

// SessionLogs returns the session's scan log in scan order. The id tiebreak
// keeps insertion order for scans landing on the same timestamp.
func SessionLogs(sessionID string) ([]models.ValidationLogEntry, error) {
	rows, err := DB.Query(
		`SELECT id, session_id, cell_serial_number, validation_result, scanned_at
		 FROM validation_logs WHERE session_id = $1 ORDER BY scanned_at, id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ValidationLogEntry
	for rows.Next() {
		var e models.ValidationLogEntry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.CellSerialNumber, &e.ValidationResult, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate validation logs: %w", err)
	}

	return entries, nil
}

// Close closes the database connection
func Close() {
	if DB != nil {
		DB.Close()
	}
}

// InitDatabase opens the database connection and applies the schema. The
// driver is chosen from the URL: postgres:// DSNs use lib/pq, anything else
// is treated as a SQLite path or file: URL.
func InitDatabase(databaseURL string) error {
	driver := driverFor(databaseURL)

	var err error
	DB, err = sql.Open(driver, databaseURL)
	if err != nil {
		return err
	}

	if driver == "sqlite" {
		// SQLite serializes writers; a small pool avoids lock contention
		DB.SetMaxOpenConns(1)
	} else {
		DB.SetMaxOpenConns(25)
		DB.SetMaxIdleConns(25)
		DB.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	if err = DB.Ping(); err != nil {
		return err
	}

	for _, stmt := range schemaStatements(driver) {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	logger.Info("database connection established", map[string]interface{}{
		"driver": driver,
	})
	return nil
}

func driverFor(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// isUniqueViolation recognizes unique-constraint failures from either
// driver: Postgres error code 23505 or SQLite's constraint message.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func schemaStatements(driver string) []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS kits (
			id %s,
			kit_serial_number TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL DEFAULT 'allocated',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, idColumn),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cells (
			id %s,
			cell_serial_number TEXT UNIQUE NOT NULL,
			kit_id BIGINT NOT NULL REFERENCES kits (id),
			status TEXT NOT NULL DEFAULT 'allocated',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, idColumn),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS validation_sessions (
			id %s,
			session_id TEXT UNIQUE NOT NULL,
			kit_id BIGINT NOT NULL REFERENCES kits (id),
			operator_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'in_progress',
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`, idColumn),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS validation_logs (
			id %s,
			session_id TEXT NOT NULL,
			cell_serial_number TEXT NOT NULL,
			validation_result TEXT NOT NULL,
			scanned_at TIMESTAMP NOT NULL
		)`, idColumn),
		`CREATE INDEX IF NOT EXISTS idx_cells_kit_id ON cells (kit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_logs_session_id ON validation_logs (session_id)`,
	}
}
