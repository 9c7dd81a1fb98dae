package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pders01/fwtl/internal/config"
	"github.com/pders01/fwtl/internal/instance"
	"github.com/pders01/fwtl/internal/storage"
	"github.com/pders01/fwtl/internal/streaming"
	"github.com/pders01/fwtl/internal/timeline"
)

const previewWidth = 100

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fwtl %s\n", Version)
		fmt.Println("Federated timeline client")
		fmt.Println("github.com/pders01/fwtl")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a default config file",
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := os.UserHomeDir()
		configFile := filepath.Join(home, ".config", "fwtl", "config.toml")

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
	},
}

var (
	previousPages int
	untilID       string
	untilDate     string
)

var timelineCmd = &cobra.Command{
	Use:   "timeline <kind>",
	Short: "Load a timeline and print it",
	Example: `  fwtl timeline home
  fwtl timeline list:9abc --previous 2
  fwtl timeline mastodon-tag:golang --account 2
  fwtl timeline feed:https://example.com/@bob.rss`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cached notes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var streamCmd = &cobra.Command{
	Use:   "stream <kind>",
	Short: "Follow a timeline live until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runStream,
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List and inspect configured accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect instance software and version of each account",
	Args:  cobra.NoArgs,
	RunE:  runAccountsDetect,
}

func init() {
	configCmd.AddCommand(configGenCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsDetectCmd)

	timelineCmd.Flags().IntVar(&previousPages, "previous", 0, "Number of older pages to load after the first")
	timelineCmd.Flags().StringVar(&untilID, "until-id", "", "Start below this note id")
	timelineCmd.Flags().StringVar(&untilDate, "until", "", "Start below this time (RFC 3339)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
}

func runTimeline(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	account, err := rt.account()
	if err != nil {
		return err
	}
	store, err := rt.openStore(account.ID, args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	query, err := initialQuery()
	if err != nil {
		return err
	}
	if query != nil {
		if err := store.Clear(ctx, query); err != nil {
			return err
		}
	}

	if _, err := store.LoadFuture(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", store.Kind(), err)
	}
	for i := 0; i < previousPages && !store.PreviousEdgeReached(); i++ {
		if _, err := store.LoadPrevious(ctx); err != nil {
			return fmt.Errorf("loading older notes: %w", err)
		}
	}

	writeNotes(cmd.OutOrStdout(), store.Notes(ctx).GetOrNil())
	if store.PreviousEdgeReached() {
		fmt.Fprintln(cmd.ErrOrStderr(), "(end of timeline)")
	}
	return nil
}

func initialQuery() (*timeline.InitialLoadQuery, error) {
	if untilID == "" && untilDate == "" {
		return nil, nil
	}
	q := &timeline.InitialLoadQuery{UntilID: untilID}
	if untilDate != "" {
		t, err := time.Parse(time.RFC3339, untilDate)
		if err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		q.UntilDate = t
	}
	return q, nil
}

func runStream(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	account, err := rt.account()
	if err != nil {
		return err
	}
	store, err := rt.openStore(account.ID, args[0])
	if err != nil {
		return err
	}
	if !store.Kind().Streaming() {
		return fmt.Errorf("%w: %s", streaming.ErrNotStreamable, store.Kind())
	}

	ctx := cmd.Context()
	if _, err := store.LoadFuture(ctx); err != nil {
		return fmt.Errorf("loading %s: %w", store.Kind(), err)
	}

	states, unsubscribe := store.Subscribe()
	defer unsubscribe()

	client := streaming.NewClient(account, rt.adder, rt.http, rt.config)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx, store.Kind(), store)
	})
	g.Go(func() error {
		return followStates(gctx, cmd.OutOrStdout(), states, rt.notes)
	})
	err = g.Wait()

	stats := store.QueueStats()
	fmt.Fprintf(cmd.ErrOrStderr(), "received %d, merged %d, duplicates %d, dropped %d\n",
		stats.Enqueued, stats.Merged, stats.Duplicates, stats.Dropped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// followStates prints notes as they enter the timeline, oldest first. It
// returns when ctx is done or the store closes.
func followStates(ctx context.Context, w io.Writer, states <-chan timeline.NoteState, notes timeline.NoteGetter) error {
	seen := make(map[storage.NoteID]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-states:
			if !ok {
				return nil
			}
			var fresh []*storage.Note
			for _, n := range timeline.ResolveNotes(ctx, s, notes).GetOrNil() {
				if !seen[n.ID] {
					seen[n.ID] = true
					fresh = append(fresh, n)
				}
			}
			slices.Reverse(fresh)
			writeNotes(w, fresh)
		}
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	query := strings.Join(args, " ")
	results, err := rt.searcher.Search(query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No results")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, r := range results {
		snippet := notePreview(r.Note)
		if len(r.Matches) > 0 && r.Matches[0].Text != "" {
			snippet = oneLine(r.Matches[0].Text, previewWidth)
		}
		fmt.Fprintf(tw, "%.2f\t%s\t@%s\t%s\n", r.Score, r.Note.ID, r.Note.Username, snippet)
	}
	return tw.Flush()
}

func runAccountsList(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	accounts, err := rt.store.GetAllAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return errNoAccounts
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tVERSION\tINSTANCE")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Name, orDash(string(a.InstanceType)), orDash(a.Version), a.InstanceURL)
	}
	return tw.Flush()
}

func runAccountsDetect(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	accounts, err := rt.store.GetAllAccounts()
	if err != nil {
		return err
	}
	detectors := instance.Default(rt.http)
	detectors.SetCache(rt.store)

	var failed []error
	for _, a := range accounts {
		if accountID != 0 && a.ID != accountID {
			continue
		}
		changed, err := detectors.Refresh(cmd.Context(), a)
		if err != nil {
			failed = append(failed, fmt.Errorf("account %d: %w", a.ID, err))
			fmt.Fprintf(cmd.ErrOrStderr(), "%d %s: %v\n", a.ID, a.InstanceURL, err)
			continue
		}
		if changed {
			a.UpdatedAt = time.Now()
			if err := rt.store.SaveAccount(a); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d %s: %s %s\n", a.ID, a.InstanceURL, orDash(string(a.InstanceType)), orDash(a.Version))
	}
	return errors.Join(failed...)
}

// writeNotes prints one line per note.
func writeNotes(w io.Writer, notes []*storage.Note) {
	for _, n := range notes {
		ts := "-"
		if !n.CreatedAt.IsZero() {
			ts = n.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s  @%-20s %s\n", ts, n.Username, notePreview(n))
	}
}

func notePreview(n *storage.Note) string {
	text := n.Text
	if n.CW != "" {
		text = "[CW: " + n.CW + "]"
	}
	if text == "" && n.RenoteID != "" {
		text = "↻ " + n.RenoteID
	}
	return oneLine(text, previewWidth)
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
