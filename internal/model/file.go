package model

import (
	"time"
)

const (
	FileTypeCheckInImage = "checkin_image"
)

const (
	OwnerTypeCheckIn = "check_in"
)

type File struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`    // Who uploaded this file
	OwnerType    string    `db:"owner_type"` // "check_in"
	OwnerID      string    `db:"owner_id"`   // Polymorphic FK
	Type         string    `db:"type"`
	Filename     string    `db:"filename"`
	OriginalName string    `db:"original_name"`
	MimeType     string    `db:"mime_type"`
	Size         int64     `db:"size"`
	StoragePath  string    `db:"storage_path"`
	CreatedAt    time.Time `db:"created_at"`
}
