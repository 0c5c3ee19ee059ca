package model

import "time"

// CategoryCount is the number of non-archived documents in one category.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

// MostAccessed identifies the document with the highest access count.
type MostAccessed struct {
	DocumentID       string `json:"documentId"`
	OriginalFileName string `json:"originalFileName"`
	AccessCount      int64  `json:"accessCount"`
}

// DocumentSummary aggregates a client's documents.
type DocumentSummary struct {
	TotalDocuments  int           `json:"totalDocuments"`
	TotalBytes      int64         `json:"totalBytes"`
	AverageBytes    float64       `json:"averageBytes"`
	RecentUploads   int           `json:"recentUploads"`
	PendingApproval int           `json:"pendingApproval"`
	Archived        int           `json:"archived"`
	LastUploadDate  *time.Time    `json:"lastUploadDate"`
	MostAccessed    *MostAccessed `json:"mostAccessed"`
	RetentionAlerts int           `json:"retentionAlerts"`
}
