package enums

import "fmt"

// NotificationType selects the delivery channel for a notification.
type NotificationType string

const (
	NotificationTypeEmail      NotificationType = "email"
	NotificationTypeSMS        NotificationType = "sms"
	NotificationTypePush       NotificationType = "push"
	NotificationTypeAssignment NotificationType = "assignment"
	NotificationTypeCourse     NotificationType = "course"
)

// DefaultNotificationType is substituted when an intent omits its type.
const DefaultNotificationType = NotificationTypeEmail

var validNotificationTypes = []NotificationType{
	NotificationTypeEmail,
	NotificationTypeSMS,
	NotificationTypePush,
	NotificationTypeAssignment,
	NotificationTypeCourse,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
