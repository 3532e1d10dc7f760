package commands

import (
	"context"
	"testing"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway/gatewaytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColour(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"#ff8800", 0xff8800, true},
		{"#FFFFFF", 0xffffff, true},
		{"0x00ff00", 0x00ff00, true},
		{"255", 255, true},
		{"16777215", MaxColour, true},
		{"16777216", 0, false},
		{"#fff", 0, false},
		{"-1", 0, false},
		{"#gggggg", 0, false},
		{"red", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseColour(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestConverters(t *testing.T) {
	ctx := context.Background()
	client := gatewaytest.NewFakeClient()
	client.Users[42] = &gateway.User{ID: 42, Username: "alice"}
	client.Members[42] = &gateway.Member{GuildID: 7, User: *client.Users[42], Nick: "ally"}
	client.Roles[9] = &gateway.Role{ID: 9, GuildID: 7, Name: "mods"}
	c := &Context{Client: client, GuildID: 7, args: map[string]any{}}

	t.Run("int", func(t *testing.T) {
		v, err := Int.Convert(ctx, c, "-12")
		require.NoError(t, err)
		assert.Equal(t, int64(-12), v)

		_, err = Int.Convert(ctx, c, "1.5")
		assert.IsType(t, reason(""), err)
	})

	t.Run("float rejects nan", func(t *testing.T) {
		_, err := Float.Convert(ctx, c, "NaN")
		assert.Error(t, err)
	})

	t.Run("user by mention", func(t *testing.T) {
		v, err := User.Convert(ctx, c, "<@!42>")
		require.NoError(t, err)
		assert.Equal(t, "alice", v.(*gateway.User).Username)
	})

	t.Run("unknown user is a reason", func(t *testing.T) {
		_, err := User.Convert(ctx, c, "99")
		assert.Equal(t, reason("user not found"), err)
	})

	t.Run("member by name", func(t *testing.T) {
		v, err := Member.Convert(ctx, c, "ally")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v.(*gateway.Member).User.ID)
	})

	t.Run("member outside guild", func(t *testing.T) {
		dm := &Context{Client: client, args: map[string]any{}}
		_, err := Member.Convert(ctx, dm, "ally")
		assert.IsType(t, reason(""), err)
	})

	t.Run("role by mention", func(t *testing.T) {
		v, err := Role.Convert(ctx, c, "<@&9>")
		require.NoError(t, err)
		assert.Equal(t, "mods", v.(*gateway.Role).Name)
	})
}
