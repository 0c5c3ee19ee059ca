package model

import "time"

// Document represents a client document stored in the system.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	DocumentID           string               `json:"documentId"`
	ClientID             string               `json:"clientId"`
	StorageKey           string               `json:"storageKey"`
	OriginalFileName     string               `json:"originalFileName"`
	StoredFileName       string               `json:"storedFileName"`
	FileSizeBytes        int64                `json:"fileSizeBytes"`
	MimeType             string               `json:"mimeType"`
	Checksum             string               `json:"checksum"`
	Category             Category             `json:"category"`
	Description          string               `json:"description"`
	Tags                 []string             `json:"tags"`
	RelatedDocuments     []string             `json:"relatedDocuments"`
	ConfidentialityLevel ConfidentialityLevel `json:"confidentialityLevel"`
	UploadDate           time.Time            `json:"uploadDate"`
	LastAccessed         *time.Time           `json:"lastAccessed"`
	AccessCount          int64                `json:"accessCount"`
	IsArchived           bool                 `json:"isArchived"`
	RetentionDate        time.Time            `json:"retentionDate"`
	ApprovedBy           *string              `json:"approvedBy"`
	ApprovalDate         *time.Time           `json:"approvalDate"`
	Version              int                  `json:"version"`
	CreatedBy            string               `json:"createdBy"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedBy            string               `json:"updatedBy"`
	UpdatedAt            time.Time            `json:"updatedAt"`
}

// ConfidentialityLevel is informational only; it does not drive access control.
type ConfidentialityLevel string

const (
	ConfidentialityLow    ConfidentialityLevel = "Low"
	ConfidentialityMedium ConfidentialityLevel = "Medium"
	ConfidentialityHigh   ConfidentialityLevel = "High"
)

// ParseConfidentialityLevel accepts Low/Medium/High in any letter case.
// An empty value yields Medium.
func ParseConfidentialityLevel(s string) (ConfidentialityLevel, bool) {
	switch normalize(s) {
	case "":
		return ConfidentialityMedium, true
	case "low":
		return ConfidentialityLow, true
	case "medium":
		return ConfidentialityMedium, true
	case "high":
		return ConfidentialityHigh, true
	}
	return "", false
}

// DocumentFilter narrows ListByClient results.
type DocumentFilter struct {
	Category   *Category
	IsArchived *bool
	Limit      int
	Offset     int
}

// DocumentPatch lists the metadata fields that may change after upload.
// Nil means "leave unchanged". Structural fields (id, client, storage key,
// checksum, upload and retention dates, audit creation fields) are absent on purpose.
type DocumentPatch struct {
	OriginalFileName     *string
	Category             *Category
	Description          *string
	Tags                 *[]string
	RelatedDocuments     *[]string
	ConfidentialityLevel *ConfidentialityLevel
}

// IsEmpty reports whether the patch carries no field to update.
func (p DocumentPatch) IsEmpty() bool {
	return p.OriginalFileName == nil &&
		p.Category == nil &&
		p.Description == nil &&
		p.Tags == nil &&
		p.RelatedDocuments == nil &&
		p.ConfidentialityLevel == nil
}

// SignedURL is a time-limited, credential-free read URL for one blob.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresOn"`
}
