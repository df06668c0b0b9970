package models

import "time"

// Kit status values. Kits are created as allocated; later lifecycle stages
// are driven by downstream systems, not by this service.
const (
	KitStatusAllocated = "allocated"
)

// Validation session status values.
const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
)

// Validation results recorded in the audit log.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// Kit is a named collection of cells tracked as one allocation unit.
// The cell set is fixed at allocation time and never changes.
type Kit struct {
	ID              int64     `json:"id"`
	KitSerialNumber string    `json:"kit_serial_number"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Cell is an individually serialized component bound to exactly one kit.
type Cell struct {
	ID               int64     `json:"id"`
	CellSerialNumber string    `json:"cell_serial_number"`
	KitID            int64     `json:"kit_id"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ValidationSession is one operator's scanning run against one kit.
// KitSerialNumber is denormalized from the kits table on read.
type ValidationSession struct {
	ID              int64      `json:"id"`
	SessionID       string     `json:"session_id"`
	KitID           int64      `json:"kit_id"`
	KitSerialNumber string     `json:"kit_serial_number"`
	OperatorName    string     `json:"operator_name"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// ValidationLogEntry is one immutable scan record. Entries are append-only;
// re-scanning the same cell produces a new entry.
type ValidationLogEntry struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"session_id"`
	CellSerialNumber string    `json:"cell_serial_number"`
	ValidationResult string    `json:"validation_result"`
	ScannedAt        time.Time `json:"scanned_at"`
}

// AllocateKitRequest is the warehouse allocation payload.
type AllocateKitRequest struct {
	KitSerialNumber   string   `json:"kitSerialNumber"`
	CellSerialNumbers []string `json:"cellSerialNumbers"`
	OperatorName      string   `json:"operatorName"`
}

// AllocateKitResponse reports the created kit and how many cells were bound.
type AllocateKitResponse struct {
	Success         bool   `json:"success"`
	KitID           int64  `json:"kitId"`
	KitSerialNumber string `json:"kitSerialNumber"`
	AllocatedCells  int    `json:"allocatedCells"`
}

// KitDetail is a kit plus the serial numbers of its allocated cells.
type KitDetail struct {
	Kit   Kit      `json:"kit"`
	Cells []string `json:"cells"`
}

// StartSessionRequest opens a validation session against a kit.
type StartSessionRequest struct {
	KitSerialNumber string `json:"kitSerialNumber"`
	OperatorName    string `json:"operatorName"`
}

// StartSessionResponse returns the generated session token.
type StartSessionResponse struct {
	Success         bool   `json:"success"`
	SessionID       string `json:"sessionId"`
	KitID           int64  `json:"kitId"`
	KitSerialNumber string `json:"kitSerialNumber"`
}

// ScanRequest asks whether a scanned cell belongs to the session's kit.
type ScanRequest struct {
	SessionID        string `json:"sessionId"`
	CellSerialNumber string `json:"cellSerialNumber"`
}

// ScanResponse carries the membership verdict for client display.
type ScanResponse struct {
	Success          bool   `json:"success"`
	IsValid          bool   `json:"isValid"`
	CellSerialNumber string `json:"cellSerialNumber"`
	KitSerialNumber  string `json:"kitSerialNumber"`
	Message          string `json:"message"`
}

// CompleteSessionRequest closes a validation session.
type CompleteSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// CompleteSessionResponse acknowledges completion.
type CompleteSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionDetail is a session plus its full ordered scan log.
type SessionDetail struct {
	Session ValidationSession    `json:"session"`
	Logs    []ValidationLogEntry `json:"logs"`
}
