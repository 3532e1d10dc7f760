// Package gatewaytest provides an in-memory gateway.Client for tests.
package gatewaytest

import (
	"context"
	"strings"
	"sync"

	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
)

// Sent records one outbound message
type Sent struct {
	ChannelID int64
	Content   string
	Embed     *gateway.Embed
}

// FakeClient records outbound calls and serves lookups from its maps
type FakeClient struct {
	mu sync.Mutex

	SelfID   int64
	Users    map[int64]*gateway.User
	Members  map[int64]*gateway.Member // by user id
	Channels map[int64]*gateway.Channel
	Roles    map[int64]*gateway.Role
	Perms    int64

	// SendErr, when set, fails every send
	SendErr error

	// ChannelErr, when set, fails every FetchChannel
	ChannelErr error

	sent      []Sent
	added     map[int64][]int64
	removed   map[int64][]int64
	nicks     map[int64]string
	presences []string
	nextID    int64
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		SelfID:   1,
		Users:    map[int64]*gateway.User{},
		Members:  map[int64]*gateway.Member{},
		Channels: map[int64]*gateway.Channel{},
		Roles:    map[int64]*gateway.Role{},
		added:    map[int64][]int64{},
		removed:  map[int64][]int64{},
		nicks:    map[int64]string{},
		nextID:   1000,
	}
}

func (f *FakeClient) record(s Sent) (*gateway.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return nil, f.SendErr
	}
	f.sent = append(f.sent, s)
	f.nextID++
	return &gateway.Message{ID: f.nextID, ChannelID: s.ChannelID, Content: s.Content}, nil
}

func (f *FakeClient) SendMessage(_ context.Context, channelID int64, content string) (*gateway.Message, error) {
	return f.record(Sent{ChannelID: channelID, Content: content})
}

func (f *FakeClient) SendEmbed(_ context.Context, channelID int64, embed *gateway.Embed) (*gateway.Message, error) {
	return f.record(Sent{ChannelID: channelID, Embed: embed})
}

func (f *FakeClient) EditMessage(context.Context, int64, int64, string) error { return nil }
func (f *FakeClient) DeleteMessage(context.Context, int64, int64) error       { return nil }
func (f *FakeClient) Typing(context.Context, int64) error                     { return nil }

func (f *FakeClient) AddRole(_ context.Context, _, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[userID] = append(f.added[userID], roleID)
	return nil
}

func (f *FakeClient) RemoveRole(_ context.Context, _, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed[userID] = append(f.removed[userID], roleID)
	return nil
}

func (f *FakeClient) SetNickname(_ context.Context, _, userID int64, nick string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nicks[userID] = nick
	return nil
}

func (f *FakeClient) SetPresence(_ context.Context, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presences = append(f.presences, status)
	return nil
}

func (f *FakeClient) FetchUser(_ context.Context, userID int64) (*gateway.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userID]; ok {
		return u, nil
	}
	return nil, gateway.ErrNotFound
}

func (f *FakeClient) FetchMember(_ context.Context, _, userID int64) (*gateway.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.Members[userID]; ok {
		return m, nil
	}
	return nil, gateway.ErrNotFound
}

func (f *FakeClient) FindMember(_ context.Context, _ int64, query string) (*gateway.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.Members {
		if strings.EqualFold(m.User.Username, query) || strings.EqualFold(m.Nick, query) {
			return m, nil
		}
	}
	return nil, gateway.ErrNotFound
}

func (f *FakeClient) FetchChannel(_ context.Context, channelID int64) (*gateway.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChannelErr != nil {
		return nil, f.ChannelErr
	}
	if c, ok := f.Channels[channelID]; ok {
		return c, nil
	}
	return nil, gateway.ErrNotFound
}

func (f *FakeClient) FetchRole(_ context.Context, _, roleID int64) (*gateway.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Roles[roleID]; ok {
		return r, nil
	}
	return nil, gateway.ErrNotFound
}

func (f *FakeClient) Permissions(context.Context, int64, int64, int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Perms, nil
}

func (f *FakeClient) Self() int64 {
	return f.SelfID
}

// Sent returns a copy of every message sent so far
func (f *FakeClient) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Contents returns the text of every plain message sent so far
func (f *FakeClient) Contents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.Embed == nil {
			out = append(out, s.Content)
		}
	}
	return out
}

func (f *FakeClient) AddedRoles(userID int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.added[userID]...)
}

func (f *FakeClient) RemovedRoles(userID int64) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.removed[userID]...)
}

func (f *FakeClient) Nick(userID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nicks[userID]
}

func (f *FakeClient) Presences() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.presences...)
}

var _ gateway.Client = (*FakeClient)(nil)
