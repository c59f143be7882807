package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardcore/internal/board"
	"github.com/zulandar/boardcore/internal/card"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board management commands",
	}

	cmd.AddCommand(newBoardCreateCmd())
	cmd.AddCommand(newBoardShowCmd())
	cmd.AddCommand(newBoardCardsCmd())
	return cmd
}

func newBoardCreateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		opts       board.CreateBoardOpts
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new board",
		Long:  "Creates a board owned by --actor. Additional --member users join with the member role.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoardCreate(cmd, configPath, opts, actor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringVar(&opts.Name, "name", "", "board name (required)")
	cmd.Flags().StringVar(&opts.TeamID, "team", "", "owning team id")
	cmd.Flags().StringSliceVar(&opts.Members, "member", nil, "member user id (repeatable)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runBoardCreate(cmd *cobra.Command, configPath string, opts board.CreateBoardOpts, actor string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.boards.CreateBoard(cmd.Context(), opts, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created board %s\n", b.ID)
	return nil
}

func newBoardShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a board with its lists and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoardShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runBoardShow(cmd *cobra.Command, configPath, id string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := e.boards.GetBoard(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Board:   %s\n", b.ID)
	fmt.Fprintf(out, "Name:    %s\n", b.Name)
	if b.TeamID != "" {
		fmt.Fprintf(out, "Team:    %s\n", b.TeamID)
	}
	fmt.Fprintf(out, "Created: %s by %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.CreatedBy)

	fmt.Fprintln(out, "\nMembers:")
	for _, m := range b.Members {
		fmt.Fprintf(out, "  %s (%s)\n", m.UserID, m.Role)
	}

	fmt.Fprintln(out, "\nLists:")
	if len(b.Lists) == 0 {
		fmt.Fprintln(out, "  (none)")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  POS\tID\tNAME")
	for _, l := range b.Lists {
		fmt.Fprintf(w, "  %d\t%s\t%s\n", l.Position, l.ID, l.Name)
	}
	return w.Flush()
}

func newBoardCardsCmd() *cobra.Command {
	var (
		configPath string
		f          card.CardFilter
		progress   int
	)

	cmd := &cobra.Command{
		Use:   "cards <id>",
		Short: "List the cards of a board in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("progress") {
				f.Progress = &progress
			}
			return runBoardCards(cmd, configPath, args[0], f)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&f.Search, "query", "q", "", "substring of title or description")
	cmd.Flags().StringVar(&f.Status, "status", "", "filter by status")
	cmd.Flags().IntVar(&progress, "progress", 0, "filter by exact progress")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "page size (default 50)")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "page offset")
	return cmd
}

func runBoardCards(cmd *cobra.Command, configPath, boardID string, f card.CardFilter) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	cards, total, err := e.cards.ListBoardCards(cmd.Context(), boardID, f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LIST\tPOS\tID\tSTATUS\tPROGRESS\tTITLE")
	for _, c := range cards {
		list := c.ListID
		if c.List != nil {
			list = c.List.Name
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d%%\t%s\n", list, c.Position, c.ID, c.Status, c.Progress, c.Title)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d of %d cards\n", len(cards), total)
	return nil
}
