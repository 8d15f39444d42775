package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"
	"github.com/rustyorb/auto-chat/storage"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved conversations",
	}

	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistoryShowCommand(a),
		newHistoryFavoriteCommand(a),
		newHistoryNotesCommand(a),
		newHistoryDeleteCommand(a),
		newHistoryStatsCommand(a),
		newHistorySearchCommand(a),
		newHistorySnapshotsCommand(a),
		newHistoryRestoreCommand(a),
	)
	return cmd
}

func newHistoryListCommand(a *app) *cobra.Command {
	var opts storage.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			rows, err := store.ListConversations(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No conversations found")
				return nil
			}
			printSummaries(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Match topic or persona name")
	cmd.Flags().BoolVarP(&opts.FavoritesOnly, "favorites", "f", false, "Only favourites")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 50, "Maximum rows")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Rows to skip")
	return cmd
}

func printSummaries(out io.Writer, rows []storage.ConversationSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tTURNS\tPERSONAS\tTOPIC")
	for _, row := range rows {
		star := ""
		if row.Favorite {
			star = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%d\t%s\t%s\n",
			row.ID, star,
			row.StartedAt.Local().Format(timeLayout),
			row.Status,
			row.TurnCount,
			strings.Join(personaNames(row.Participants), ", "),
			row.Topic,
		)
	}
	w.Flush()
}

func personaNames(participants []model.ParticipantInfo) []string {
	names := make([]string, len(participants))
	for i, p := range participants {
		names[i] = p.Persona
	}
	return names
}

func newHistoryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			conv, err := store.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversation %s (%s)\n", conv.ID, conv.Status)
			fmt.Fprintf(out, "Topic: %s\n", conv.Topic)
			fmt.Fprintf(out, "Started: %s\n", conv.StartedAt.Local().Format(timeLayout))
			for _, p := range conv.Participants {
				fmt.Fprintf(out, "  %s on %s:%s\n", p.Persona, p.Provider, p.Model)
			}
			if conv.Notes != "" {
				fmt.Fprintf(out, "Notes: %s\n", conv.Notes)
			}
			fmt.Fprintln(out)
			for _, msg := range conv.Messages {
				fmt.Fprintf(out, "%s: %s\n", msg.SpeakerName, msg.Content)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, model.Summarize(conv.Messages))
			return nil
		},
	}
}

func newHistoryFavoriteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle the favourite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			fav, err := store.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if fav {
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as favourite\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favourites\n", args[0])
			}
			return nil
		},
	}
}

func newHistoryNotesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <id> <text...>",
		Short: "Replace a conversation's notes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			notes := strings.Join(args[1:], " ")
			if err := store.UpdateNotes(cmd.Context(), args[0], notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated notes for %s\n", args[0])
			return nil
		},
	}
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			if err := store.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newHistoryStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			stats, err := store.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversations: %d\n", stats.TotalConversations)
			fmt.Fprintf(out, "Messages: %d\n", stats.TotalMessages)
			fmt.Fprintf(out, "Favourites: %d\n", stats.FavoriteCount)
			if len(stats.TopPersonas) > 0 {
				fmt.Fprintln(out, "Top personas:")
				for _, pc := range stats.TopPersonas {
					fmt.Fprintf(out, "  %s: %d\n", pc.Persona, pc.Count)
				}
			}
			return nil
		},
	}
}

func newHistorySearchCommand(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search message text across conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.History()
			if err != nil {
				return err
			}
			matches, err := store.SearchMessages(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%s #%d %s: %s\n", m.ConversationID, m.TurnNumber, m.Persona, m.Preview)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum matches")
	return cmd
}

func newHistorySnapshotsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List autosave snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.Snapshots()
			if err != nil {
				return err
			}
			snaps, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUPDATED\tSTATUS\tMESSAGES\tPERSONAS\tTOPIC")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.UpdatedAt.Local().Format(timeLayout), s.Status, s.MessageCount,
					strings.Join(s.Participants, ", "), s.Topic)
			}
			w.Flush()
			return nil
		},
	}
}

func newHistoryRestoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Copy an autosave snapshot into the history database",
		Long:  "Copy an autosave snapshot into the history database. Useful when a run was killed before it could save.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := a.Snapshots()
			if err != nil {
				return err
			}
			snap, err := snaps.Load(args[0])
			if err != nil {
				return err
			}
			history, err := a.History()
			if err != nil {
				return err
			}

			t := snap.Transcript
			if t.Status == model.StatusRunning {
				t.Status = model.StatusStopped
			}
			if t.EndedAt.IsZero() {
				t.EndedAt = snap.UpdatedAt
			}
			if t.EndedAt.IsZero() {
				t.EndedAt = time.Now()
			}
			if err := history.SaveConversation(cmd.Context(), t); err != nil {
				return errors.Wrap(err, "failed to restore snapshot")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s with %d messages\n", t.ID, len(t.Messages))
			return nil
		},
	}
}
