package media

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/debuglog"
)

// Launcher opens note attachments and links in external programs.
type Launcher struct {
	players     map[string]PlayerDefinition
	candidates  map[Type][]string
	defaultOpen string

	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
}

// NewLauncher builds a launcher from cfg. A broken players file is logged
// and the built-in player definitions are used instead.
func NewLauncher(cfg config.MediaConfig) *Launcher {
	players, err := LoadPlayers(cfg.PlayersFile)
	if err != nil {
		debuglog.Warnf("media: %v", err)
	}

	opener := cfg.DefaultOpener
	if opener == "" {
		opener = getDefaultOpener()
	}

	return &Launcher{
		players: players,
		candidates: map[Type][]string{
			TypeVideo: cfg.Video,
			TypeImage: cfg.Image,
			TypeAudio: cfg.Audio,
		},
		defaultOpen: opener,
		lookPath:    exec.LookPath,
		start: func(c *exec.Cmd) error {
			if err := c.Start(); err != nil {
				return err
			}
			go func() { _ = c.Wait() }()
			return nil
		},
	}
}

// Command returns the command that would open rawURL. Only http and https
// URLs are accepted.
func (l *Launcher) Command(rawURL string) (*exec.Cmd, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid media URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported media URL scheme %q", u.Scheme)
	}
	target := u.String()

	t := DetectType(target)
	if name, path := l.findCommand(l.candidates[t]); path != "" {
		args, _ := l.players[name].args(t)
		return exec.Command(path, append(append([]string{}, args...), target)...), nil
	}

	if l.defaultOpen == "" {
		return nil, fmt.Errorf("no program available to open %s", t)
	}
	if runtime.GOOS == "windows" && l.defaultOpen == "start" {
		return exec.Command("cmd", "/c", "start", "", target), nil
	}
	return exec.Command(l.defaultOpen, target), nil
}

// Open starts the program for rawURL without waiting for it.
func (l *Launcher) Open(rawURL string) error {
	cmd, err := l.Command(rawURL)
	if err != nil {
		return err
	}
	debuglog.Infof("media: %s", strings.Join(cmd.Args, " "))
	return l.start(cmd)
}

// findCommand returns the first candidate found on PATH that has a player
// definition for the current platform, or any found candidate when none
// has one.
func (l *Launcher) findCommand(candidates []string) (name, path string) {
	var fallbackName, fallbackPath string
	for _, c := range candidates {
		p, err := l.lookPath(c)
		if err != nil {
			continue
		}
		if _, ok := l.players[c]; ok {
			return c, p
		}
		if fallbackPath == "" {
			fallbackName, fallbackPath = c, p
		}
	}
	return fallbackName, fallbackPath
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "start"
	default:
		return "xdg-open"
	}
}
