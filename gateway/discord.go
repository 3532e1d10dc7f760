package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// closeAuthFailed is the gateway close code for a rejected token
const closeAuthFailed = 4004

const queueSize = 1024

// Sink receives translated events in per-shard receipt order
type Sink func(ctx context.Context, ev Event)

// Discord implements Client over one discordgo session per shard
type Discord struct {
	token      string
	shardCount int

	sessions []*discordgo.Session
	queues   []chan Event
	selfID   atomic.Int64
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewDiscord prepares the shards without connecting
func NewDiscord(token string, shardCount int) (*Discord, error) {
	if shardCount < 1 {
		shardCount = 1
	}

	d := &Discord{token: token, shardCount: shardCount}
	for i := 0; i < shardCount; i++ {
		s, err := discordgo.New("Bot " + token)
		if err != nil {
			return nil, fmt.Errorf("error creating discord session: %w", err)
		}
		s.ShardID = i
		s.ShardCount = shardCount
		s.Identify.Intents = discordgo.IntentsAll
		// handlers only enqueue, so running them inline keeps receipt order
		s.SyncEvents = true

		d.sessions = append(d.sessions, s)
		d.queues = append(d.queues, make(chan Event, queueSize))
	}
	return d, nil
}

// Open connects every shard and starts one pump per shard feeding sink.
// A rejected token returns ErrAuthFailed without retrying.
func (d *Discord) Open(ctx context.Context, sink Sink) error {
	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	for i, s := range d.sessions {
		shard := i
		queue := d.queues[i]

		s.AddHandler(func(_ *discordgo.Session, raw any) {
			if r, ok := raw.(*discordgo.Ready); ok && r.User != nil {
				d.selfID.Store(parseID(r.User.ID))
			}
			ev, ok := translate(shard, raw)
			if !ok {
				return
			}
			if !enqueue(pumpCtx, queue, ev) {
				log.WithFields(log.Fields{
					"shard": shard,
					"kind":  ev.Kind,
				}).Debug("Shard closing, event not queued")
			}
		})

		d.wg.Add(1)
		go d.pump(pumpCtx, queue, sink)

		if err := d.openShard(ctx, s); err != nil {
			d.Close()
			return err
		}
		log.WithField("shard", shard).Info("Shard connected")
	}
	return nil
}

// enqueue blocks until the pump accepts ev or is stopped. Events are
// delivered synchronously per shard, so waiting here holds back the reader.
func enqueue(ctx context.Context, queue chan<- Event, ev Event) bool {
	select {
	case queue <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Discord) pump(ctx context.Context, queue <-chan Event, sink Sink) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-queue:
			if !ok {
				return
			}
			sink(ctx, ev)
		}
	}
}

func (d *Discord) openShard(ctx context.Context, s *discordgo.Session) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute

	op := func() error {
		err := s.Open()
		if err == nil {
			return nil
		}
		if isAuthFailure(err) {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrAuthFailed, err))
		}
		log.WithFields(log.Fields{
			"shard": s.ShardID,
			"error": err,
		}).Warn("Shard failed to connect, retrying")
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("failed to open shard %d: %w", s.ShardID, err)
	}
	return nil
}

func isAuthFailure(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == closeAuthFailed
	}
	return strings.Contains(err.Error(), "4004")
}

// Close disconnects all shards and stops the pumps
func (d *Discord) Close() error {
	var firstErr error
	for _, s := range d.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return firstErr
}

// rest returns the session used for REST calls; all shards share the same token
func (d *Discord) rest() *discordgo.Session {
	return d.sessions[0]
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func (d *Discord) Self() int64 {
	return d.selfID.Load()
}

func (d *Discord) SendMessage(ctx context.Context, channelID int64, content string) (*Message, error) {
	m, err := d.rest().ChannelMessageSend(formatID(channelID), content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	return fromMessage(m), nil
}

func (d *Discord) SendEmbed(ctx context.Context, channelID int64, embed *Embed) (*Message, error) {
	m, err := d.rest().ChannelMessageSendEmbed(formatID(channelID), toEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	return fromMessage(m), nil
}

func (d *Discord) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	_, err := d.rest().ChannelMessageEdit(formatID(channelID), formatID(messageID), content, discordgo.WithContext(ctx))
	return mapErr(err)
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return mapErr(d.rest().ChannelMessageDelete(formatID(channelID), formatID(messageID), discordgo.WithContext(ctx)))
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	return mapErr(d.rest().GuildMemberRoleAdd(formatID(guildID), formatID(userID), formatID(roleID), discordgo.WithContext(ctx)))
}

func (d *Discord) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	return mapErr(d.rest().GuildMemberRoleRemove(formatID(guildID), formatID(userID), formatID(roleID), discordgo.WithContext(ctx)))
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID int64, nick string) error {
	return mapErr(d.rest().GuildMemberNickname(formatID(guildID), formatID(userID), nick, discordgo.WithContext(ctx)))
}

// SetPresence updates the playing status on every shard
func (d *Discord) SetPresence(_ context.Context, status string) error {
	for _, s := range d.sessions {
		if err := s.UpdateGameStatus(0, status); err != nil {
			return fmt.Errorf("failed to update presence on shard %d: %w", s.ShardID, err)
		}
	}
	return nil
}

func (d *Discord) FetchUser(ctx context.Context, userID int64) (*User, error) {
	u, err := d.rest().User(formatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	user := fromUser(u)
	return &user, nil
}

func (d *Discord) FetchMember(ctx context.Context, guildID, userID int64) (*Member, error) {
	m, err := d.rest().GuildMember(formatID(guildID), formatID(userID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	return fromMember(formatID(guildID), m), nil
}

// FindMember prefers an exact (case-insensitive) username or nickname match
func (d *Discord) FindMember(ctx context.Context, guildID int64, query string) (*Member, error) {
	found, err := d.rest().GuildMembersSearch(formatID(guildID), query, 10, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}

	for _, m := range found {
		if m.User != nil && (strings.EqualFold(m.User.Username, query) || strings.EqualFold(m.Nick, query)) {
			return fromMember(formatID(guildID), m), nil
		}
	}
	return fromMember(formatID(guildID), found[0]), nil
}

func (d *Discord) FetchChannel(ctx context.Context, channelID int64) (*Channel, error) {
	c, err := d.rest().Channel(formatID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	return &Channel{ID: parseID(c.ID), GuildID: parseID(c.GuildID), Name: c.Name}, nil
}

func (d *Discord) FetchRole(ctx context.Context, guildID, roleID int64) (*Role, error) {
	roles, err := d.rest().GuildRoles(formatID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr(err)
	}
	for _, r := range roles {
		if parseID(r.ID) == roleID {
			return fromRole(formatID(guildID), r), nil
		}
	}
	return nil, ErrNotFound
}

func (d *Discord) Typing(ctx context.Context, channelID int64) error {
	return mapErr(d.rest().ChannelTyping(formatID(channelID), discordgo.WithContext(ctx)))
}

func (d *Discord) Permissions(ctx context.Context, _, channelID, userID int64) (int64, error) {
	perms, err := d.rest().UserChannelPermissions(formatID(userID), formatID(channelID), discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapErr(err)
	}
	return perms, nil
}
