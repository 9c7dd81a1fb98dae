package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/fwtl/internal/media"
	"github.com/pders01/fwtl/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	dbPath     string
	accountID  int64
	allowLocal bool
	quiet      bool
	noStream   bool
)

var rootCmd = &cobra.Command{
	Use:   "fwtl",
	Short: "Federated timeline client for Misskey and Mastodon",
	Long: `fwtl pages Misskey and Mastodon timelines, merges their live
streams and keeps a local note cache you can search.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to configuration file")
	flags.StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	flags.Int64Var(&accountID, "account", 0, "Account id (defaults to the first configured account)")
	flags.BoolVar(&allowLocal, "allow-local", false, "Allow localhost and private instance addresses and any file path")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Skip startup banner")
	rootCmd.Flags().BoolVar(&noStream, "no-stream", false, "Do not open streaming connections")

	rootCmd.AddCommand(versionCmd, configCmd, timelineCmd, streamCmd, searchCmd, accountsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if !quiet {
		fmt.Println(tui.Banner(Version))
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	tabs, err := rt.openTabs()
	if err != nil {
		return err
	}

	if rt.config.Stream.Enabled && !noStream {
		stop := rt.startStreams(cmd.Context(), tabs)
		defer stop()
	}

	app := tui.NewApp(tui.Options{
		Config:   rt.config,
		Tabs:     tabs,
		Notes:    rt.notes,
		Searcher: rt.searcher,
		Media:    media.NewLauncher(rt.config.Media),
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
