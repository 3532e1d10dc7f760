package kv

import "fmt"

func ExpKey(userID int64, name string) string {
	return fmt.Sprintf("exp:%d:%s", userID, name)
}

func AntispamKey(userID int64) string {
	return fmt.Sprintf("antispam:%d", userID)
}

func PresenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}

func PresenceMsgsKey(userID int64) string {
	return fmt.Sprintf("presence:%d:msgs", userID)
}

func StockKey(channelID int64) string {
	return fmt.Sprintf("stocks:%d", channelID)
}

func MessagesKey(userID int64) string {
	return fmt.Sprintf("messages_%d", userID)
}

// AntispamPattern matches every anti-spam ring
const AntispamPattern = "antispam:*"

// OptOutKey is the set of users excluded from message analytics
const OptOutKey = "analytics:optout"
