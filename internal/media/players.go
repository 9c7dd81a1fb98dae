package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// PlayerDefinition defines how a media player should be invoked
type PlayerDefinition struct {
	Platforms []string     `toml:"platforms"`
	Video     *PlayerFlags `toml:"video,omitempty"`
	Image     *PlayerFlags `toml:"image,omitempty"`
	Audio     *PlayerFlags `toml:"audio,omitempty"`
	PDF       *PlayerFlags `toml:"pdf,omitempty"`
}

// PlayerFlags are the arguments placed before the URL.
type PlayerFlags struct {
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type playersFile struct {
	Players map[string]PlayerDefinition `toml:"players"`
}

func builtinPlayers() map[string]PlayerDefinition {
	all := []string{"darwin", "linux", "windows"}
	return map[string]PlayerDefinition{
		"mpv": {
			Platforms: all,
			Video:     &PlayerFlags{Args: []string{"--force-window=immediate", "--really-quiet"}},
			Audio:     &PlayerFlags{Args: []string{"--no-video", "--really-quiet"}},
			Image:     &PlayerFlags{Args: []string{"--force-window=immediate", "--image-display-duration=inf"}},
		},
		"vlc": {
			Platforms: all,
			Video:     &PlayerFlags{Args: []string{"--play-and-exit"}},
			Audio:     &PlayerFlags{Args: []string{"--play-and-exit", "--intf", "dummy"}},
		},
		"imv":  {Platforms: []string{"linux"}, Image: &PlayerFlags{}},
		"feh":  {Platforms: []string{"linux"}, Image: &PlayerFlags{Args: []string{"--scale-down", "--auto-zoom"}}},
		"sxiv": {Platforms: []string{"linux"}, Image: &PlayerFlags{}},
	}
}

// LoadPlayers returns the built-in player definitions overlaid with those
// in path. A missing file is not an error.
func LoadPlayers(path string) (map[string]PlayerDefinition, error) {
	players := builtinPlayers()
	if path == "" {
		return players, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return players, nil
	}
	if err != nil {
		return players, err
	}

	var user playersFile
	if err := toml.Unmarshal(data, &user); err != nil {
		return players, fmt.Errorf("parsing %s: %w", path, err)
	}
	for name, def := range user.Players {
		players[name] = def
	}
	return players, nil
}

// args returns the flags def uses for t on this platform. ok is false when
// the player does not handle t here.
func (def PlayerDefinition) args(t Type) (args []string, ok bool) {
	if len(def.Platforms) > 0 && !contains(def.Platforms, runtime.GOOS) {
		return nil, false
	}

	var flags *PlayerFlags
	switch t {
	case TypeVideo:
		flags = def.Video
	case TypeImage:
		flags = def.Image
	case TypeAudio:
		flags = def.Audio
	case TypePDF:
		flags = def.PDF
	}
	if flags == nil {
		return nil, false
	}

	switch runtime.GOOS {
	case "darwin":
		if len(flags.ArgsDarwin) > 0 {
			return flags.ArgsDarwin, true
		}
	case "linux":
		if len(flags.ArgsLinux) > 0 {
			return flags.ArgsLinux, true
		}
	case "windows":
		if len(flags.ArgsWindows) > 0 {
			return flags.ArgsWindows, true
		}
	}
	return flags.Args, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
