package notification

import (
	"fmt"
	"strconv"

	"ecoStepAPI/internal/gamification"
)

type NotificationType string

const (
	NotificationBadge   NotificationType = "badge_earned"
	NotificationLevelUp NotificationType = "level_up"
	NotificationPremium NotificationType = "premium"
	NotificationTest    NotificationType = "test"
)

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// Message is one push addressed to every device of a user.
type Message struct {
	UserID string           `json:"userId"`
	Type   NotificationType `json:"type"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Data   map[string]any   `json:"data"`
}

func BadgeMessage(userID string, b gamification.Badge) Message {
	return Message{
		UserID: userID,
		Type:   NotificationBadge,
		Title:  fmt.Sprintf("%s New badge: %s", b.Icon, b.Name),
		Body:   "You earned a new badge. Keep up the great work!",
		Data:   map[string]any{"type": string(NotificationBadge), "badge": b.Name},
	}
}

func LevelUpMessage(userID string, level int) Message {
	return Message{
		UserID: userID,
		Type:   NotificationLevelUp,
		Title:  "Level up! 🎉",
		Body:   "You reached level " + strconv.Itoa(level) + ".",
		Data:   map[string]any{"type": string(NotificationLevelUp), "level": level},
	}
}
