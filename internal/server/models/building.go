package models

import "time"

const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
)

// Building is a catalog entry whose CityGML model and texture live in
// object storage.
type Building struct {
	ID      string
	Name    string
	OwnerID string

	// GMLKey and TextureKey are object-storage keys of the uploaded files.
	GMLKey     string
	TextureKey string

	// UploadStatus tracks whether the client finished uploading ("pending", "completed").
	UploadStatus string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UploadTask hands the client a presigned URL for one object.
type UploadTask struct {
	Key string
	URL string
}
