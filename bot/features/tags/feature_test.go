package tags

import (
	"context"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/bot/features/featuretest"
	"github.com/Fuyukai/Jokusoramame-sub000/commands"
	"github.com/Fuyukai/Jokusoramame-sub000/models"
	"github.com/Fuyukai/Jokusoramame-sub000/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	guild = featuretest.GuildID
	user  = featuretest.UserID
)

func newHarness(t *testing.T) *featuretest.Harness {
	t.Helper()
	h := featuretest.New(t, plugin.Catalog{
		"tags": Factory,
		"other": func(*plugin.Env) (*plugin.Manifest, error) {
			return &plugin.Manifest{
				Name: "other",
				Commands: []*commands.Command{{
					Name:    "ping",
					Handler: func(ctx context.Context, c *commands.Context) error { return c.Reply(ctx, "pong") },
				}},
			}, nil
		},
	})
	h.Load("tags")
	h.Load("other")
	return h
}

func TestTags_TextTag(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "rules").Return(&models.Tag{ID: 1, GuildID: guild, Name: "rules", Content: "Be nice."}, nil)

	h.Send(user, "j!Rules")
	assert.Equal(t, "Be nice.", h.LastContent())
}

func TestTags_UnknownNameIsSilent(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "nothing").Return(nil, nil)

	h.Send(user, "j!nothing")
	assert.Empty(t, h.Client.Sent())
}

func TestTags_CommandsWin(t *testing.T) {
	h := newHarness(t)

	h.Send(user, "j!ping")
	assert.Equal(t, []string{"pong"}, h.Client.Contents())
	h.UoW.Tags.AssertNotCalled(t, "GetByNameOrAlias", mock.Anything, mock.Anything, mock.Anything)
}

func TestTags_LuaTag(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "greet").Return(&models.Tag{
		ID: 2, GuildID: guild, Name: "greet", IsLua: true,
		Content: `print("hi " .. ctx.args[1]) return #ctx.args`,
	}, nil)

	h.Send(user, "j!greet bob alice")
	assert.Equal(t, "hi bob\n2", h.LastContent())
}

func TestTags_LuaFailures(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"runtime error", `error("boom")`, "❌ tag `bad` failed: "},
		{"underscore field", `return ctx.__index`, "❌ tag `bad` failed: "},
		{"forbidden global", `return load("return 1")()`, "❌ tag `bad` failed: "},
		{"no output", `local x = 1`, "(no output)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.UoW.Tags.ExpectedCalls = nil
			h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "bad").Return(&models.Tag{ID: 3, GuildID: guild, Name: "bad", IsLua: true, Content: tt.source}, nil)

			h.Send(user, "j!bad")
			assert.Contains(t, h.LastContent(), tt.want)
		})
	}
}

func TestTags_Create(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "faq").Return(nil, nil)
	h.UoW.Guilds.On("EnsureGuild", mock.Anything, guild).Return(&models.Guild{ID: guild}, nil)
	h.UoW.Tags.On("Create", mock.Anything, mock.MatchedBy(func(tag *models.Tag) bool {
		return tag.Name == "faq" && tag.Content == "Read the pins." && !tag.IsLua && tag.OwnerID == user
	})).Return(nil).Once()

	h.Send(user, "j!tag create FAQ Read the pins.")

	assert.Equal(t, "✅ Created tag `faq`.", h.LastContent())
	h.UoW.Tags.AssertExpectations(t)
}

func TestTags_CreateLuaStripsFence(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "dice").Return(nil, nil)
	h.UoW.Guilds.On("EnsureGuild", mock.Anything, guild).Return(&models.Guild{ID: guild}, nil)
	h.UoW.Tags.On("Create", mock.Anything, mock.MatchedBy(func(tag *models.Tag) bool {
		return tag.Name == "dice" && tag.Content == "return 4" && tag.IsLua
	})).Return(nil).Once()

	h.Send(user, "j!tag lua dice ```lua\nreturn 4\n```")

	assert.Equal(t, "✅ Created tag `dice`.", h.LastContent())
	h.UoW.Tags.AssertExpectations(t)
}

func TestTags_CreateRejects(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "faq").Return(&models.Tag{ID: 1, Name: "faq"}, nil)

	h.Send(user, "j!tag create ping hello")
	assert.Equal(t, "❌ `ping` is already a command", h.LastContent())

	h.Send(user, "j!tag create faq hello")
	assert.Equal(t, "❌ tag `faq` already exists", h.LastContent())

	h.Send(user, "j!tag create bad:name hello")
	assert.Equal(t, "❌ tag names are up to 64 letters, digits, dashes or underscores", h.LastContent())

	h.UoW.Tags.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTags_Alias(t *testing.T) {
	h := newHarness(t)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "rules").Return(&models.Tag{ID: 1, Name: "rules"}, nil)
	h.UoW.Tags.On("GetByNameOrAlias", mock.Anything, guild, "r").Return(nil, nil)
	h.UoW.Tags.On("AddAlias", mock.Anything, guild, "r", int64(1)).Return(nil).Once()

	h.Send(user, "j!tag alias r rules")

	assert.Equal(t, "✅ `r` now points at `rules`.", h.LastContent())
	h.UoW.Tags.AssertExpectations(t)
}

func TestArgumentText(t *testing.T) {
	assert.Equal(t, "a b", argumentText("j!greet  a b ", "j!", "greet"))
	assert.Equal(t, "", argumentText("j!greet", "j!", "greet"))
	assert.Equal(t, "", argumentText("j!", "j!", "greet"))
}
