package notifications

import (
	"strings"

	dbtypes "github.com/learnsphere/learnsphere-backend/pkg/db/types"
	"github.com/learnsphere/learnsphere-backend/pkg/enums"
)

// defaultSubject is used when neither metadata nor the payload carry one.
const defaultSubject = "Notification"

// IntentData is the wire shape of an intent's structured payload. Subject at
// the top level is accepted from older callers and only consulted as a
// fallback when metadata does not carry one.
type IntentData struct {
	AssignmentID *string                       `json:"assignmentId,omitempty"`
	CourseID     *string                       `json:"courseId,omitempty"`
	URL          *string                       `json:"url,omitempty"`
	Subject      string                        `json:"subject,omitempty"`
	Metadata     *dbtypes.NotificationMetadata `json:"metadata,omitempty"`
}

// Intent is a caller-supplied description of a notification to send. Missing
// fields are tolerated structurally and defaulted at processing time.
type Intent struct {
	UserID  string                 `json:"userId"`
	Message string                 `json:"message"`
	Type    enums.NotificationType `json:"type,omitempty"`
	Data    *IntentData            `json:"data,omitempty"`
}

// Normalized returns a copy with an absent channel type defaulted. An
// unrecognized type is kept as-is; dispatch routes it to the fallback channel
// rather than promoting it to a real email.
func (i Intent) Normalized() Intent {
	out := i
	if out.Type == "" {
		out.Type = enums.DefaultNotificationType
	}
	return out
}

// RecordData maps the intent payload onto the persisted shape: absent fields
// stay null, metadata defaults to an empty object.
func (i Intent) RecordData() dbtypes.NotificationData {
	data := dbtypes.NotificationData{}
	if i.Data == nil {
		return data
	}
	data.AssignmentID = i.Data.AssignmentID
	data.CourseID = i.Data.CourseID
	data.URL = i.Data.URL
	if i.Data.Metadata != nil {
		data.Metadata = *i.Data.Metadata
	}
	return data
}

// Subject resolves the email subject line: metadata subject, then the
// payload-level subject, then a fixed default.
func (i Intent) Subject() string {
	if i.Data != nil {
		if i.Data.Metadata != nil && i.Data.Metadata.Subject != "" {
			return i.Data.Metadata.Subject
		}
		if i.Data.Subject != "" {
			return i.Data.Subject
		}
	}
	return defaultSubject
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// escapeHTML neutralizes HTML-special characters before content is placed in
// an outbound message.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
