package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

var (
	_ sql.Scanner   = (*NotificationData)(nil)
	_ driver.Valuer = NotificationData{}
	_ sql.Scanner   = (*NotificationMetadata)(nil)
	_ driver.Valuer = NotificationMetadata{}
)

// NotificationMetadata carries the optional presentation hints attached to a
// notification payload.
type NotificationMetadata struct {
	Subject        string `json:"subject,omitempty"`
	Priority       string `json:"priority,omitempty"`
	Category       string `json:"category,omitempty"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// NotificationData is the structured payload persisted alongside a
// notification record. Absent fields stay null; metadata defaults to an empty
// object rather than null.
type NotificationData struct {
	AssignmentID *string              `json:"assignmentId"`
	CourseID     *string              `json:"courseId"`
	URL          *string              `json:"url"`
	Metadata     NotificationMetadata `json:"metadata"`
}

func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (d *NotificationData) Scan(value any) error {
	return scanJSONB(d, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (d NotificationData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for reading JSONB from the database.
func (m *NotificationMetadata) Scan(value any) error {
	return scanJSONB(m, value)
}

// Value implements driver.Valuer for writing JSONB to the database.
func (m NotificationMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}
