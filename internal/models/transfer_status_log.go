package models

import "time"

// SystemUserID marks log entries written by automatic cascades.
const SystemUserID = 0

// StatusLogEntry is one row of the append-only transfer audit trail.
type StatusLogEntry struct {
	ID            int             `json:"id"`
	TransferID    int             `json:"transfer_id"`
	FromStatus    *TransferStatus `json:"from_status"`
	ToStatus      TransferStatus  `json:"to_status"`
	ChangedBy     int             `json:"changed_by"`
	ChangedByName string          `json:"changed_by_name,omitempty"`
	ChangedAt     time.Time       `json:"changed_at"`
	Notes         string          `json:"notes"`
}

// TransitionEvent is published after a committed status change.
type TransitionEvent struct {
	TransferID     int             `json:"transfer_id"`
	TransferNumber string          `json:"transfer_number"`
	ProjectID      *int            `json:"project_id,omitempty"`
	FromStatus     *TransferStatus `json:"from_status"`
	ToStatus       TransferStatus  `json:"to_status"`
	ChangedBy      int             `json:"changed_by"`
	ChangedAt      time.Time       `json:"changed_at"`
}
