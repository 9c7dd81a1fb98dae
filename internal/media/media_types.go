package media

import (
	"net/url"
	"path"
	"strings"
)

type Type int

const (
	TypeUnknown Type = iota
	TypeVideo
	TypeImage
	TypeAudio
	TypePDF
)

func (t Type) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypePDF:
		return "pdf"
	default:
		return "unknown"
	}
}

var extensions = map[string]Type{
	"mp4": TypeVideo, "webm": TypeVideo, "mov": TypeVideo, "mkv": TypeVideo, "m4v": TypeVideo, "avi": TypeVideo,
	"jpg": TypeImage, "jpeg": TypeImage, "png": TypeImage, "gif": TypeImage, "webp": TypeImage, "avif": TypeImage, "apng": TypeImage,
	"mp3": TypeAudio, "ogg": TypeAudio, "opus": TypeAudio, "m4a": TypeAudio, "flac": TypeAudio, "wav": TypeAudio, "aac": TypeAudio,
	"pdf": TypePDF,
}

// videoHosts are link targets that play as video without a file extension.
var videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com", "twitch.tv", "nicovideo.jp"}

// DetectType guesses the media type of rawURL from its path extension and,
// for links without one, from well-known video hosts. Drive files served
// by Misskey keep their extension, so this covers attachments too.
func DetectType(rawURL string) Type {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return TypeUnknown
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if t, ok := extensions[ext]; ok {
		return t
	}

	host := strings.ToLower(u.Hostname())
	for _, h := range videoHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return TypeVideo
		}
	}
	return TypeUnknown
}
