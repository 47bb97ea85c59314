package model

import "time"

type FileMetadata struct {
	Key         string    `json:"-"`
	URL         string    `json:"url"`
	Type        string    `json:"type"` // image | video
	Size        int64     `json:"size"`
	Name        string    `json:"name"`
	ContentType string    `json:"-"`
	UploadedBy  string    `json:"-"`
	CreatedAt   time.Time `json:"-"`
}
