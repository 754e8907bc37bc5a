package model

import "time"

// Storage media an uploaded image can end up in.
const (
	StorageRemote = "remote"
	StorageInline = "inline"
)

// UploadResult is produced once per upload attempt and handed straight back
// to the caller, which stores URL through the ordinary write path.
type UploadResult struct {
	Success       bool   `json:"success"`
	URL           string `json:"url,omitempty"`
	StorageMedium string `json:"storage_medium,omitempty"`
	Error         string `json:"error,omitempty"`
}

// UploadLog records one ingestion attempt for the admin audit trail.
type UploadLog struct {
	FileName        string    `json:"file_name" bson:"file_name"`
	ContentType     string    `json:"content_type" bson:"content_type"`
	SizeIn          int64     `json:"size_in" bson:"size_in"`
	SizeOut         int64     `json:"size_out" bson:"size_out"`
	StorageMedium   string    `json:"storage_medium" bson:"storage_medium"`
	Status          string    `json:"status" bson:"status"` // 'success' or 'failed'
	ErrorMessage    string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ExecutionTimeMs int64     `json:"execution_time_ms" bson:"execution_time_ms"`
	UploadedBy      string    `json:"uploaded_by,omitempty" bson:"uploaded_by,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}
