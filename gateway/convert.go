package gateway

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

func parseID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func fromUser(u *discordgo.User) User {
	if u == nil {
		return User{}
	}
	return User{ID: parseID(u.ID), Username: u.Username, Bot: u.Bot}
}

func fromMember(guildID string, m *discordgo.Member) *Member {
	if m == nil {
		return nil
	}
	if m.GuildID != "" {
		guildID = m.GuildID
	}
	roles := make([]int64, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, parseID(r))
	}
	return &Member{
		GuildID: parseID(guildID),
		User:    fromUser(m.User),
		Nick:    m.Nick,
		RoleIDs: roles,
	}
}

func fromMessage(m *discordgo.Message) *Message {
	return &Message{
		ID:        parseID(m.ID),
		ChannelID: parseID(m.ChannelID),
		GuildID:   parseID(m.GuildID),
		Author:    fromUser(m.Author),
		Content:   m.Content,
	}
}

func fromRole(guildID string, r *discordgo.Role) *Role {
	return &Role{
		ID:       parseID(r.ID),
		GuildID:  parseID(guildID),
		Name:     r.Name,
		Colour:   r.Color,
		Position: r.Position,
	}
}

func toEmbed(e *Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Colour,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

// translate maps a discordgo event to ours. ok is false for events the bot ignores.
func translate(shard int, raw any) (Event, bool) {
	ev := Event{Shard: shard}

	switch e := raw.(type) {
	case *discordgo.MessageCreate:
		if e.Message == nil || e.Author == nil {
			return ev, false
		}
		ev.Kind = KindMessage
		ev.Message = fromMessage(e.Message)
		if e.Member != nil {
			ev.Member = fromMember(e.GuildID, e.Member)
			ev.Member.User = ev.Message.Author
		}
	case *discordgo.GuildMemberAdd:
		if e.Member == nil {
			return ev, false
		}
		ev.Kind = KindMemberJoin
		ev.Member = fromMember("", e.Member)
	case *discordgo.GuildMemberRemove:
		if e.Member == nil {
			return ev, false
		}
		ev.Kind = KindMemberRemove
		ev.Member = fromMember("", e.Member)
	case *discordgo.GuildRoleDelete:
		ev.Kind = KindRoleDelete
		ev.Role = &Role{ID: parseID(e.RoleID), GuildID: parseID(e.GuildID)}
	case *discordgo.MessageReactionAdd:
		if e.MessageReaction == nil {
			return ev, false
		}
		ev.Kind = KindReactionAdd
		ev.Reaction = &Reaction{
			MessageID: parseID(e.MessageID),
			ChannelID: parseID(e.ChannelID),
			GuildID:   parseID(e.GuildID),
			UserID:    parseID(e.UserID),
			Emoji:     e.Emoji.Name,
		}
	case *discordgo.GuildEmojisUpdate:
		ev.Kind = KindEmojiUpdate
		ev.Guild = &Guild{ID: parseID(e.GuildID)}
		for _, em := range e.Emojis {
			ev.Emojis = append(ev.Emojis, em.Name)
		}
	case *discordgo.GuildCreate:
		if e.Guild == nil {
			return ev, false
		}
		ev.Kind = KindGuildReady
		ev.Guild = &Guild{ID: parseID(e.ID), Name: e.Name}
	case *discordgo.Ready:
		ev.Kind = KindConnect
	default:
		return ev, false
	}
	return ev, true
}
