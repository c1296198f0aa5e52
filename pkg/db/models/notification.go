package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/learnsphere/learnsphere-backend/pkg/db/types"
	"github.com/learnsphere/learnsphere-backend/pkg/enums"
)

// Notification records that a notification was processed for a user. Its
// existence implies at least one processing attempt, not delivery success.
type Notification struct {
	ID        uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    string                   `gorm:"column:user_id;type:text;not null;index:idx_notifications_user_created" json:"user"`
	Message   string                   `gorm:"type:text;not null" json:"message"`
	Type      enums.NotificationType   `gorm:"type:text;not null" json:"type"`
	Data      dbtypes.NotificationData `gorm:"type:jsonb" json:"data"`
	Read      bool                     `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time                `gorm:"type:timestamptz;default:now();index:idx_notifications_user_created" json:"createdAt"`
}
