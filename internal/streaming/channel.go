package streaming

import (
	"net/url"
	"strings"

	"github.com/pders01/fwtl/internal/timeline"
)

// misskeyChannel is a Misskey streaming channel subscription. userID, when
// set, keeps only notes by that user: Misskey has no per-user channel, so
// user timelines ride on the global one.
type misskeyChannel struct {
	name   string
	params map[string]any
	userID string
}

func misskeyChannelFor(k timeline.Kind) (misskeyChannel, bool) {
	params := map[string]any{}
	if k.OnlyMedia {
		params["withFiles"] = true
	}
	switch k.Type {
	case timeline.KindHome:
		return misskeyChannel{name: "homeTimeline", params: params}, true
	case timeline.KindLocal:
		return misskeyChannel{name: "localTimeline", params: params}, true
	case timeline.KindSocial:
		return misskeyChannel{name: "hybridTimeline", params: params}, true
	case timeline.KindGlobal:
		return misskeyChannel{name: "globalTimeline", params: params}, true
	case timeline.KindUserList:
		params["listId"] = k.Param
		return misskeyChannel{name: "userList", params: params}, true
	case timeline.KindAntenna:
		params["antennaId"] = k.Param
		return misskeyChannel{name: "antenna", params: params}, true
	case timeline.KindChannel:
		params["channelId"] = k.Param
		return misskeyChannel{name: "channel", params: params}, true
	case timeline.KindUser:
		return misskeyChannel{name: "globalTimeline", params: params, userID: k.Param}, true
	}
	return misskeyChannel{}, false
}

// mastodonStreamFor returns the query selecting the Mastodon stream for k.
func mastodonStreamFor(k timeline.Kind) (url.Values, bool) {
	q := url.Values{}
	media := ""
	if k.OnlyMedia {
		media = ":media"
	}
	switch k.Type {
	case timeline.KindMastodonHome:
		q.Set("stream", "user")
	case timeline.KindMastodonLocal:
		q.Set("stream", "public:local"+media)
	case timeline.KindMastodonPublic:
		q.Set("stream", "public"+media)
	case timeline.KindMastodonList:
		q.Set("stream", "list")
		q.Set("list", k.Param)
	case timeline.KindMastodonHashTag:
		q.Set("stream", "hashtag")
		q.Set("tag", strings.TrimPrefix(k.Param, "#"))
	default:
		return nil, false
	}
	return q, true
}

// websocketURL turns an instance base URL into the ws(s) URL for path.
func websocketURL(base, path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String(), nil
}
