package model

// NotificationKind names the customer message emitted at a lifecycle step.
type NotificationKind string

const (
	NotifyPending   NotificationKind = "pending"
	NotifyConfirmed NotificationKind = "confirmed"
	NotifyReady     NotificationKind = "ready"
	NotifyThankYou  NotificationKind = "thankyou"
	NotifyReminder  NotificationKind = "reminder"
)
