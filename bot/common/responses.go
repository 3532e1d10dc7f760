package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"

	log "github.com/sirupsen/logrus"
)

const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow
)

// SuccessText prefixes a confirmation
func SuccessText(format string, args ...any) string {
	return "✅ " + fmt.Sprintf(format, args...)
}

// CanEmbed reports whether the bot may send embeds in the channel
func CanEmbed(ctx context.Context, client gateway.Client, guildID, channelID int64) bool {
	if guildID == 0 {
		return true
	}
	perms, err := client.Permissions(ctx, guildID, channelID, client.Self())
	if err != nil {
		log.WithError(err).WithField("channel", channelID).Warn("Failed to resolve own permissions")
		return false
	}
	return perms&(gateway.PermissionEmbedLinks|gateway.PermissionAdministrator) != 0
}

// SendEmbedOrText sends the embed when permitted, otherwise a plain-text rendering of it
func SendEmbedOrText(ctx context.Context, client gateway.Client, guildID, channelID int64, embed *gateway.Embed) error {
	if CanEmbed(ctx, client, guildID, channelID) {
		_, err := client.SendEmbed(ctx, channelID, embed)
		return err
	}
	_, err := client.SendMessage(ctx, channelID, EmbedText(embed))
	return err
}

// EmbedText flattens an embed for channels that do not allow them
func EmbedText(embed *gateway.Embed) string {
	var b strings.Builder
	if embed.Title != "" {
		fmt.Fprintf(&b, "**%s**\n", embed.Title)
	}
	if embed.Description != "" {
		b.WriteString(embed.Description)
		b.WriteByte('\n')
	}
	for _, f := range embed.Fields {
		fmt.Fprintf(&b, "**%s**: %s\n", f.Name, f.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
