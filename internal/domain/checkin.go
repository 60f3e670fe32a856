package domain

import (
	"errors"
	"time"
)

const (
	StatusVerified       = "verified"
	StatusManualOverride = "manual_override"
	StatusFlagged        = "flagged"
)

// CheckIn is a persisted admission record. At most one exists per
// (entry, pass type) system-wide, regardless of gate or device.
type CheckIn struct {
	ID                 int64     `json:"check_in_id"`
	EntryID            int64     `json:"entry_id"`
	PassType           PassType  `json:"pass_type"`
	GateNumber         string    `json:"gate_number"`
	GateLocation       string    `json:"gate_location"`
	CheckInTime        time.Time `json:"check_in_time"`
	ScannerDeviceID    string    `json:"scanner_device_id"`
	ScannerOperator    string    `json:"scanner_operator"`
	VerificationStatus string    `json:"verification_status"`
	QRData             string    `json:"qr_data,omitempty"`
}

// CheckinSubmission is one admission event reported by a device, either
// immediately (online) or deferred in a batch (offline sync).
type CheckinSubmission struct {
	EntryID         int64     `json:"entry_id"`
	PassType        PassType  `json:"pass_type"`
	GateNumber      string    `json:"gate_number"`
	GateLocation    string    `json:"gate_location"`
	CheckInTime     time.Time `json:"check_in_time"`
	ScannerDeviceID string    `json:"scanner_device_id"`
	ScannerOperator string    `json:"scanner_operator"`
	QRData          string    `json:"qr_data,omitempty"`
}

// CheckinOutcome reports a single submission. A duplicate is not an error;
// it carries the original admission time for the operator to show.
type CheckinOutcome struct {
	Recorded     bool
	CheckinID    int64
	EntryID      int64
	AttendeeName string
	CheckInTime  time.Time // time of the persisted record, original one if duplicate
}

// BatchOutcome aggregates a batch sync. Recorded + Duplicates + Errors
// always equals Total.
type BatchOutcome struct {
	Total        int      `json:"total"`
	Recorded     int      `json:"uploaded"`
	Duplicates   int      `json:"duplicates"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"error_details,omitempty"`
}

// GateStats summarizes recorded check-ins for one gate, or all gates.
type GateStats struct {
	GateNumber    string     `json:"gate_number"`
	TotalScans    int64      `json:"total_scans"`
	UniqueEntries int64      `json:"unique_entries"`
	LastScanTime  *time.Time `json:"last_scan_time,omitempty"`
}

var ErrUnknownEntry = errors.New("entry not found")
