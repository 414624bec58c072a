package models

// User is the read-only identity view served by the user directory.
// Profile management lives outside this service.
type User struct {
	ID          int    `db:"id" json:"id"`
	DisplayName string `db:"display_name" json:"display_name"`
	ImagePath   string `db:"image_path" json:"image_path,omitempty"`
}
