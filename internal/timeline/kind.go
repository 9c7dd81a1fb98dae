package timeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pders01/fwtl/internal/storage"
)

var (
	// ErrUnsupportedKind is returned when a kind has no paging source for
	// the account it is bound to.
	ErrUnsupportedKind = errors.New("unsupported timeline kind")
	// ErrMissingCollaborator is returned when a required dependency is nil.
	ErrMissingCollaborator = errors.New("missing timeline collaborator")
)

// KindType selects the backend endpoint. The set is closed.
type KindType string

const (
	KindHome     KindType = "home"
	KindLocal    KindType = "local"
	KindSocial   KindType = "social"
	KindGlobal   KindType = "global"
	KindUserList KindType = "list"
	KindAntenna  KindType = "antenna"
	KindChannel  KindType = "channel"
	KindUser     KindType = "user"
	KindSearch   KindType = "search"
	KindFavorite KindType = "favorite"

	KindMastodonHome       KindType = "mastodon-home"
	KindMastodonLocal      KindType = "mastodon-local"
	KindMastodonPublic     KindType = "mastodon-public"
	KindMastodonList       KindType = "mastodon-list"
	KindMastodonHashTag    KindType = "mastodon-tag"
	KindMastodonUser       KindType = "mastodon-user"
	KindMastodonFavourites KindType = "mastodon-favourites"

	KindFeed KindType = "feed"
)

type kindInfo struct {
	backend    storage.InstanceType // empty: any account
	needsParam bool
	streaming  bool
}

var kinds = map[KindType]kindInfo{
	KindHome:     {backend: storage.InstanceMisskey, streaming: true},
	KindLocal:    {backend: storage.InstanceMisskey, streaming: true},
	KindSocial:   {backend: storage.InstanceMisskey, streaming: true},
	KindGlobal:   {backend: storage.InstanceMisskey, streaming: true},
	KindUserList: {backend: storage.InstanceMisskey, needsParam: true, streaming: true},
	KindAntenna:  {backend: storage.InstanceMisskey, needsParam: true, streaming: true},
	KindChannel:  {backend: storage.InstanceMisskey, needsParam: true, streaming: true},
	KindUser:     {backend: storage.InstanceMisskey, needsParam: true, streaming: true},
	KindSearch:   {backend: storage.InstanceMisskey, needsParam: true},
	KindFavorite: {backend: storage.InstanceMisskey},

	KindMastodonHome:       {backend: storage.InstanceMastodon, streaming: true},
	KindMastodonLocal:      {backend: storage.InstanceMastodon, streaming: true},
	KindMastodonPublic:     {backend: storage.InstanceMastodon, streaming: true},
	KindMastodonList:       {backend: storage.InstanceMastodon, needsParam: true, streaming: true},
	KindMastodonHashTag:    {backend: storage.InstanceMastodon, needsParam: true, streaming: true},
	KindMastodonUser:       {backend: storage.InstanceMastodon, needsParam: true},
	KindMastodonFavourites: {backend: storage.InstanceMastodon},

	KindFeed: {needsParam: true},
}

// Kind describes which timeline a store pages. Param carries the list,
// antenna, channel or user id, the search query, the hashtag or the feed
// URL, depending on Type.
type Kind struct {
	Type      KindType
	Param     string
	OnlyMedia bool
}

// ParseKind reads "type" or "type:param", e.g. "home", "list:9abc",
// "mastodon-tag:golang" or "feed:https://example.com/@bob.rss".
func ParseKind(s string) (Kind, error) {
	typ, param, _ := strings.Cut(strings.TrimSpace(s), ":")
	k := Kind{Type: KindType(strings.ToLower(typ)), Param: param}
	if err := k.Validate(); err != nil {
		return Kind{}, err
	}
	return k, nil
}

func (k Kind) String() string {
	if k.Param == "" {
		return string(k.Type)
	}
	return string(k.Type) + ":" + k.Param
}

func (k Kind) Validate() error {
	info, ok := kinds[k.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, k.Type)
	}
	if info.needsParam && k.Param == "" {
		return fmt.Errorf("%w: %s needs a parameter", ErrUnsupportedKind, k.Type)
	}
	return nil
}

// Backend reports which instance type the kind requires. The empty value
// means the kind works with any account.
func (k Kind) Backend() storage.InstanceType {
	return kinds[k.Type].backend
}

// Streaming reports whether the kind has a live channel.
func (k Kind) Streaming() bool {
	return kinds[k.Type].streaming
}

// SupportedBy reports whether an account of type t can page k.
func (k Kind) SupportedBy(t storage.InstanceType) bool {
	info, ok := kinds[k.Type]
	if !ok {
		return false
	}
	return info.backend == "" || info.backend == t
}

// KindTypes lists every kind usable with t, in a stable order.
func KindTypes(t storage.InstanceType) []KindType {
	order := []KindType{
		KindHome, KindLocal, KindSocial, KindGlobal, KindUserList, KindAntenna,
		KindChannel, KindUser, KindSearch, KindFavorite,
		KindMastodonHome, KindMastodonLocal, KindMastodonPublic, KindMastodonList,
		KindMastodonHashTag, KindMastodonUser, KindMastodonFavourites,
		KindFeed,
	}
	var out []KindType
	for _, typ := range order {
		if (Kind{Type: typ}).SupportedBy(t) {
			out = append(out, typ)
		}
	}
	return out
}
