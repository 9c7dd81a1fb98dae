// Package streaming subscribes to the Misskey and Mastodon streaming APIs
// and hands every received note to a timeline store.
package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pders01/fwtl/internal/api"
	"github.com/pders01/fwtl/internal/api/mastodon"
	"github.com/pders01/fwtl/internal/api/misskey"
	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/debuglog"
	"github.com/pders01/fwtl/internal/notes"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/timeline"
)

const (
	defaultReconnectDelay   = 5 * time.Second
	defaultHandshakeTimeout = 15 * time.Second
	pingInterval            = 60 * time.Second
)

// ErrNotStreamable is returned for kinds without a live channel.
var ErrNotStreamable = errors.New("timeline kind has no streaming channel")

// Sink receives the ids of streamed notes. *timeline.Store satisfies it.
type Sink interface {
	OnReceiveNote(id storage.NoteID)
}

type Client struct {
	account        *storage.Account
	adder          *notes.Adder
	dialer         *websocket.Dialer
	userAgent      string
	reconnectDelay time.Duration
	logger         *debuglog.FieldLogger
}

func NewClient(account *storage.Account, adder *notes.Adder, httpClient *api.Client, cfg *config.Config) *Client {
	reconnect := defaultReconnectDelay
	handshake := defaultHandshakeTimeout
	if cfg != nil {
		if cfg.Stream.ReconnectDelay > 0 {
			reconnect = cfg.Stream.ReconnectDelay
		}
		if cfg.Stream.HandshakeTimeout > 0 {
			handshake = cfg.Stream.HandshakeTimeout
		}
	}

	logger := debuglog.WithFields(map[string]any{
		"account":  account.ID,
		"instance": account.InstanceURL,
	})
	return &Client{
		account:        account,
		adder:          adder,
		dialer:         &websocket.Dialer{HandshakeTimeout: handshake, Proxy: websocket.DefaultDialer.Proxy},
		userAgent:      httpClient.UserAgent(),
		reconnectDelay: reconnect,
		logger:         logger,
	}
}

// Run keeps a subscription for kind open until ctx is done, reconnecting
// after failures. Rejected handshakes (4xx other than 429) are final and
// returned as *api.HTTPError. Cancellation returns nil.
func (c *Client) Run(ctx context.Context, kind timeline.Kind, sink Sink) error {
	if !kind.Streaming() || !kind.SupportedBy(c.account.InstanceType) {
		return fmt.Errorf("%w: %s", ErrNotStreamable, kind)
	}
	logger := c.logger.With("timeline", kind.String())

	for {
		err := c.session(ctx, kind, sink, logger)
		if ctx.Err() != nil {
			return nil
		}
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			logger.Errorf("stream rejected: %v", err)
			return err
		}

		logger.Warnf("stream disconnected: %v; reconnecting in %s", err, c.reconnectDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

// RunAll streams every target concurrently. It returns when ctx is done or
// the first stream fails for good.
func (c *Client) RunAll(ctx context.Context, targets map[timeline.Kind]Sink) error {
	g, gctx := errgroup.WithContext(ctx)
	for kind, sink := range targets {
		g.Go(func() error {
			return c.Run(gctx, kind, sink)
		})
	}
	return g.Wait()
}

func (c *Client) session(ctx context.Context, kind timeline.Kind, sink Sink, logger *debuglog.FieldLogger) error {
	switch c.account.InstanceType {
	case storage.InstanceMisskey:
		ch, _ := misskeyChannelFor(kind)
		q := url.Values{}
		q.Set("i", c.account.Token)
		conn, err := c.dial(ctx, "/streaming", q)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer keepAlive(ctx, conn)()
		logger.Infof("connected to %s", ch.name)
		return c.readMisskey(ctx, conn, ch, kind.OnlyMedia, sink, logger)

	case storage.InstanceMastodon:
		q, _ := mastodonStreamFor(kind)
		q.Set("access_token", c.account.Token)
		conn, err := c.dial(ctx, "/api/v1/streaming", q)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer keepAlive(ctx, conn)()
		logger.Infof("connected to %s", q.Get("stream"))
		return c.readMastodon(ctx, conn, kind.OnlyMedia, sink, logger)
	}
	return fmt.Errorf("%w: instance type %q", ErrNotStreamable, c.account.InstanceType)
}

func (c *Client) dial(ctx context.Context, path string, query url.Values) (*websocket.Conn, error) {
	target, err := websocketURL(c.account.InstanceURL, path, query)
	if err != nil {
		return nil, fmt.Errorf("building streaming URL: %w", err)
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if c.account.InstanceType == storage.InstanceMastodon && c.account.Token != "" {
		header.Set("Authorization", "Bearer "+c.account.Token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &api.HTTPError{Method: http.MethodGet, URL: path, StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil, fmt.Errorf("dialing %s: %w", path, err)
	}

	return conn, nil
}

// keepAlive pings conn periodically and closes it once ctx is done, which
// unblocks the reader. Close and WriteControl may run concurrently with
// reads. The returned func stops both.
func keepAlive(ctx context.Context, conn *websocket.Conn) func() {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		stop()
		close(done)
	}
}

type misskeyEnvelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type misskeyChannelEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type misskeyConnect struct {
	Channel string         `json:"channel"`
	ID      string         `json:"id"`
	Params  map[string]any `json:"params,omitempty"`
}

func (c *Client) readMisskey(ctx context.Context, conn *websocket.Conn, ch misskeyChannel, onlyMedia bool, sink Sink, logger *debuglog.FieldLogger) error {
	id := ulid.Make().String()
	connect := struct {
		Type string         `json:"type"`
		Body misskeyConnect `json:"body"`
	}{
		Type: "connect",
		Body: misskeyConnect{Channel: ch.name, ID: id, Params: ch.params},
	}
	if err := conn.WriteJSON(connect); err != nil {
		return fmt.Errorf("subscribing to %s: %w", ch.name, err)
	}

	for {
		var env misskeyEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return readError(ctx, err)
		}
		if env.Type != "channel" {
			continue
		}

		var ev misskeyChannelEvent
		if err := json.Unmarshal(env.Body, &ev); err != nil {
			logger.Warnf("malformed channel event: %v", err)
			continue
		}
		if ev.ID != id || ev.Type != "note" {
			continue
		}

		var note misskey.Note
		if err := json.Unmarshal(ev.Body, &note); err != nil {
			logger.Warnf("malformed note: %v", err)
			continue
		}
		if ch.userID != "" && note.UserID != ch.userID {
			continue
		}
		if onlyMedia && len(note.Files) == 0 {
			continue
		}

		ids, err := c.adder.AddMisskey(c.account.ID, []misskey.Note{note})
		if err != nil {
			logger.Warnf("storing streamed note %s: %v", note.ID, err)
			continue
		}
		sink.OnReceiveNote(ids[0])
	}
}

type mastodonEvent struct {
	Event   string   `json:"event"`
	Stream  []string `json:"stream"`
	Payload string   `json:"payload"`
}

func (c *Client) readMastodon(ctx context.Context, conn *websocket.Conn, onlyMedia bool, sink Sink, logger *debuglog.FieldLogger) error {
	for {
		var ev mastodonEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return readError(ctx, err)
		}
		if ev.Event != "update" {
			continue
		}

		var status mastodon.Status
		if err := json.Unmarshal([]byte(ev.Payload), &status); err != nil {
			logger.Warnf("malformed status: %v", err)
			continue
		}
		if onlyMedia && len(status.MediaAttachments) == 0 {
			continue
		}

		ids, err := c.adder.AddMastodon(c.account.ID, []mastodon.Status{status})
		if err != nil {
			logger.Warnf("storing streamed status %s: %v", status.ID, err)
			continue
		}
		sink.OnReceiveNote(ids[0])
	}
}

func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("server closed stream: %w", err)
	}
	return fmt.Errorf("reading stream: %w", err)
}
