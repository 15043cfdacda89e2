package enums

// NotificationType is stored in notifications.type.
type NotificationType string

const (
	NotificationTypeCreditsRefunded     NotificationType = "credits_refunded"
	NotificationTypeCreditsLow          NotificationType = "credits_low"
	NotificationTypeCreditsPurchased    NotificationType = "credits_purchased"
	NotificationTypeInvitationCompleted NotificationType = "invitation_completed"
)

var notificationTypes = []NotificationType{
	NotificationTypeCreditsRefunded,
	NotificationTypeCreditsLow,
	NotificationTypeCreditsPurchased,
	NotificationTypeInvitationCompleted,
}

func (n NotificationType) IsValid() bool { return member(notificationTypes, n) }

// ParseNotificationType accepts either case.
func ParseNotificationType(value string) (NotificationType, error) {
	return lookup("notification type", notificationTypes, value, true)
}
