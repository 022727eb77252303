package domain

import "time"

// Record is the single in-progress intake record of a session.
type Record struct {
	Vehicle      VehicleFields          `json:"vehicle"`
	WorkOrder    *WorkOrder             `json:"workOrder,omitempty"`
	Inspection   *Inspection            `json:"inspection,omitempty"`
	Checklist    *Checklist             `json:"checklist,omitempty"`
	TypeApproval *TypeApprovalSelection `json:"typeApproval,omitempty"`
	Signatures   *Signatures            `json:"signatures,omitempty"`
	Attachments  Attachments            `json:"attachments"`
	Archive      []ArchiveEntry         `json:"archive,omitempty"`
}

type WorkOrder struct {
	Number        string   `json:"number"`
	Customer      string   `json:"customer"`
	Description   string   `json:"description"`
	Technician    string   `json:"technician"`
	Modifications []string `json:"modifications,omitempty"`
}

// Inspection holds the metadata of the final inspection.
type Inspection struct {
	Date      *time.Time `json:"date,omitempty"`
	Inspector string     `json:"inspector"`
	Odometer  *int       `json:"odometer,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// Checklist is the final inspection checklist keyed by item code.
type Checklist struct {
	Items map[string]bool `json:"items"`
}

// Passed reports whether every item is ticked. An empty checklist never passes.
func (c *Checklist) Passed() bool {
	if c == nil || len(c.Items) == 0 {
		return false
	}
	for _, ok := range c.Items {
		if !ok {
			return false
		}
	}
	return true
}

// TypeApprovalSelection is the reference-table row picked during the lookup step.
type TypeApprovalSelection struct {
	ApprovalNumber string `json:"approvalNumber"`
	Variant        string `json:"variant,omitempty"`
	Version        string `json:"version,omitempty"`
	TradeName      string `json:"tradeName,omitempty"`
}

type Signatures struct {
	Technician string `json:"technician,omitempty"`
	Customer   string `json:"customer,omitempty"`
}

// Attachments groups the document slots of a record.
type Attachments struct {
	Registration *Attachment  `json:"registration,omitempty"`
	Label        *Attachment  `json:"label,omitempty"`
	Media        []Attachment `json:"media,omitempty"`
}

// ArchiveEntry is a finalized record. Entries never hold live binaries and
// never nest another archive.
type ArchiveEntry struct {
	Key         string    `json:"key"`
	Branch      string    `json:"branch"`
	CommittedAt time.Time `json:"committedAt"`
	Record      Record    `json:"record"`
}

// TypeApproval is one row of the type-approval reference table.
type TypeApproval struct {
	ID             string            `json:"id"`
	ApprovalNumber string            `json:"approvalNumber"`
	Brand          string            `json:"brand"`
	Type           string            `json:"type"`
	Variant        string            `json:"variant"`
	Version        string            `json:"version"`
	TradeName      string            `json:"tradeName"`
	Extra          map[string]string `json:"extra,omitempty"`
	ImportedAt     time.Time         `json:"importedAt"`
}

// ImportJob tracks one queued type-approval CSV upload.
type ImportJob struct {
	ID         string     `json:"id"`
	FileName   string     `json:"fileName"`
	Status     string     `json:"status"` // queued|running|completed|failed
	RowsLoaded int        `json:"rowsLoaded"`
	Error      string     `json:"error,omitempty"`
	QueuedAt   time.Time  `json:"queuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}
