package testutil

import (
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/models"
)

// CreateTestReminder returns an enabled reminder due at the given time
func CreateTestReminder(userID, channelID int64, at time.Time) *models.Reminder {
	return &models.Reminder{
		UserID:      userID,
		ChannelID:   channelID,
		RemindingAt: at.UTC(),
		Text:        "water the plants",
		Enabled:     true,
	}
}

// CreateTestStock returns a stock with a round starting price
func CreateTestStock(guildID, channelID int64) *models.Stock {
	return &models.Stock{
		ChannelID: channelID,
		GuildID:   guildID,
		Price:     10,
		Amount:    1000,
	}
}

// CreateTestTag returns a plain-text tag
func CreateTestTag(guildID, ownerID int64, name string) *models.Tag {
	return &models.Tag{
		GuildID: guildID,
		OwnerID: ownerID,
		Name:    name,
		Content: "hello from " + name,
	}
}
