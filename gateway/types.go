package gateway

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Kind names an inbound event type
type Kind string

const (
	KindMessage      Kind = "message"
	KindMemberJoin   Kind = "member_join"
	KindMemberRemove Kind = "member_remove"
	KindRoleDelete   Kind = "role_delete"
	KindReactionAdd  Kind = "reaction_add"
	KindEmojiUpdate  Kind = "emoji_update"
	KindGuildReady   Kind = "guild_ready"
	KindConnect      Kind = "connect"

	// Raised by the command layer rather than the gateway
	KindPlainMessage   Kind = "plain_message"
	KindUnknownCommand Kind = "unknown_command"
)

// Permission bits checked by the bot
const (
	PermissionAdministrator   = discordgo.PermissionAdministrator
	PermissionManageGuild     = discordgo.PermissionManageServer
	PermissionManageRoles     = discordgo.PermissionManageRoles
	PermissionManageMessages  = discordgo.PermissionManageMessages
	PermissionManageNicknames = discordgo.PermissionManageNicknames
	PermissionEmbedLinks      = discordgo.PermissionEmbedLinks
)

// ErrNotFound is returned when the chat service reports a missing entity
var ErrNotFound = errors.New("not found")

// ErrAuthFailed means the token was rejected; reconnecting will not help
var ErrAuthFailed = errors.New("gateway authentication failed")

type User struct {
	ID       int64
	Username string
	Bot      bool
}

type Member struct {
	GuildID int64
	User    User
	Nick    string
	RoleIDs []int64
}

// DisplayName is the nickname when set, otherwise the username
func (m *Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64 // zero in direct messages
	Author    User
	Content   string
}

// IsDM reports whether the message was sent outside a guild
func (m *Message) IsDM() bool {
	return m.GuildID == 0
}

type Role struct {
	ID       int64
	GuildID  int64
	Name     string
	Colour   int
	Position int
}

type Channel struct {
	ID      int64
	GuildID int64
	Name    string
}

type Reaction struct {
	MessageID int64
	ChannelID int64
	GuildID   int64
	UserID    int64
	Emoji     string
}

type Guild struct {
	ID   int64
	Name string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Colour      int
	Fields      []EmbedField
}

// Event is one inbound occurrence. Only the payload matching Kind is set.
type Event struct {
	Kind  Kind
	Shard int

	Message  *Message
	Member   *Member
	Role     *Role
	Reaction *Reaction
	Guild    *Guild
	Emojis   []string

	// Set on unknown_command: the name that failed to resolve and the prefix used
	Invoked string
	Prefix  string
}

// GuildID returns the guild the event belongs to, or zero
func (e Event) GuildID() int64 {
	switch {
	case e.Message != nil:
		return e.Message.GuildID
	case e.Member != nil:
		return e.Member.GuildID
	case e.Role != nil:
		return e.Role.GuildID
	case e.Reaction != nil:
		return e.Reaction.GuildID
	case e.Guild != nil:
		return e.Guild.ID
	}
	return 0
}

// Client is the outbound surface of the chat service
type Client interface {
	SendMessage(ctx context.Context, channelID int64, content string) (*Message, error)
	SendEmbed(ctx context.Context, channelID int64, embed *Embed) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID int64, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
	SetNickname(ctx context.Context, guildID, userID int64, nick string) error
	SetPresence(ctx context.Context, status string) error

	FetchUser(ctx context.Context, userID int64) (*User, error)
	FetchMember(ctx context.Context, guildID, userID int64) (*Member, error)
	// FindMember searches by username or nickname
	FindMember(ctx context.Context, guildID int64, query string) (*Member, error)
	FetchChannel(ctx context.Context, channelID int64) (*Channel, error)
	FetchRole(ctx context.Context, guildID, roleID int64) (*Role, error)

	Typing(ctx context.Context, channelID int64) error
	Permissions(ctx context.Context, guildID, channelID, userID int64) (int64, error)

	// Self returns the bot's own user ID once connected
	Self() int64
}
