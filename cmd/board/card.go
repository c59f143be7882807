package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardcore/internal/activity"
	"github.com/zulandar/boardcore/internal/card"
	"github.com/zulandar/boardcore/internal/models"
)

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Card management commands",
	}

	cmd.AddCommand(newCardCreateCmd())
	cmd.AddCommand(newCardShowCmd())
	cmd.AddCommand(newCardUpdateCmd())
	cmd.AddCommand(newCardMoveCmd())
	cmd.AddCommand(newCardProgressCmd())
	cmd.AddCommand(newCardDepsCmd())
	cmd.AddCommand(newCardDeleteCmd())
	return cmd
}

func newCardCreateCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		listID     string
		start, due string
		deps       []string
		f          card.CreateFields
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a card at the end of a list",
		Long:  "Creates a card. Each --dep must name an existing card and may not close a dependency cycle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if f.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if f.DueDate, err = parseDate(due); err != nil {
				return err
			}
			return runCardCreate(cmd, configPath, listID, f, deps, actor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringVar(&listID, "list", "", "list id (required)")
	cmd.Flags().StringVar(&f.Title, "title", "", "card title (required)")
	cmd.Flags().StringVar(&f.Description, "description", "", "card description")
	cmd.Flags().StringVar(&f.Status, "status", "", "status (todo, in_progress, review, done)")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.Assignees, "assignee", nil, "assignee user id (repeatable)")
	cmd.Flags().StringSliceVar(&f.LabelIDs, "label", nil, "label id (repeatable)")
	cmd.Flags().StringSliceVar(&deps, "dep", nil, "id of a card this one depends on (repeatable)")
	cmd.MarkFlagRequired("list")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runCardCreate(cmd *cobra.Command, configPath, listID string, f card.CreateFields, deps []string, actor string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.cards.CreateCard(cmd.Context(), listID, f, deps, actor)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created card %s\n", c.ID)
	fmt.Fprintf(out, "Position: %d\n", c.Position)
	return nil
}

func newCardShowCmd() *cobra.Command {
	var (
		configPath   string
		withActivity bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a card with its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCardShow(cmd, configPath, args[0], withActivity)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&withActivity, "activity", false, "include the card's activity log")
	return cmd
}

func runCardShow(cmd *cobra.Command, configPath, id string, withActivity bool) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	c, err := e.cards.GetCard(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printCard(cmd, c)
	if !withActivity {
		return nil
	}
	entries, err := activity.List(cmd.Context(), e.db, activity.Filter{CardID: id})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nActivity:")
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, a := range entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", a.CreatedAt.Format("2006-01-02 15:04:05"), a.ActorID, a.Type, a.Details)
	}
	return w.Flush()
}

func printCard(cmd *cobra.Command, c *models.Card) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Card:        %s\n", c.ID)
	fmt.Fprintf(out, "Title:       %s\n", c.Title)
	if c.List != nil {
		fmt.Fprintf(out, "List:        %s (%s)\n", c.List.Name, c.ListID)
		if c.List.Board != nil {
			fmt.Fprintf(out, "Board:       %s (%s)\n", c.List.Board.Name, c.List.BoardID)
		}
	}
	fmt.Fprintf(out, "Position:    %d\n", c.Position)
	fmt.Fprintf(out, "Status:      %s\n", c.Status)
	fmt.Fprintf(out, "Priority:    %s\n", c.Priority)
	fmt.Fprintf(out, "Progress:    %d%%\n", c.Progress)
	if c.StartDate != nil {
		fmt.Fprintf(out, "Start:       %s\n", c.StartDate.Format("2006-01-02"))
	}
	if c.DueDate != nil {
		fmt.Fprintf(out, "Due:         %s\n", c.DueDate.Format("2006-01-02"))
	}
	assignees := make([]string, len(c.Assignees))
	for i, a := range c.Assignees {
		assignees[i] = a.UserID
	}
	fmt.Fprintf(out, "Assignees:   %s\n", joinOrDash(assignees))
	fmt.Fprintf(out, "Depends on:  %s\n", joinOrDash(c.DependencyIDs()))
	if c.Description != "" {
		fmt.Fprintf(out, "\n%s\n", c.Description)
	}
}

func newCardUpdateCmd() *cobra.Command {
	var (
		configPath, actor                string
		title, description, status, prio string
		start, due                       string
		clearStart, clearDue             bool
		assignees, labels                []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update card fields",
		Long:  "Updates only the fields whose flags are given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f card.UpdateFields
			flags := cmd.Flags()
			if flags.Changed("title") {
				f.Title = &title
			}
			if flags.Changed("description") {
				f.Description = &description
			}
			if flags.Changed("status") {
				f.Status = &status
			}
			if flags.Changed("priority") {
				f.Priority = &prio
			}
			if flags.Changed("assignee") {
				f.Assignees = &assignees
			}
			if flags.Changed("label") {
				f.LabelIDs = &labels
			}
			var err error
			if f.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if f.DueDate, err = parseDate(due); err != nil {
				return err
			}
			f.ClearStartDate, f.ClearDueDate = clearStart, clearDue
			return runCardUpdate(cmd, configPath, args[0], f, actor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&prio, "priority", "", "new priority")
	cmd.Flags().StringVar(&start, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearStart, "clear-start", false, "remove the start date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "replace assignees (repeatable)")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "replace labels (repeatable)")
	return cmd
}

func runCardUpdate(cmd *cobra.Command, configPath, id string, f card.UpdateFields, actor string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	c, _, err := e.cards.UpdateCard(cmd.Context(), id, f, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated card %s\n", c.ID)
	return nil
}

func newCardMoveCmd() *cobra.Command {
	var (
		configPath, actor, listID string
		target                    int
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a card within its list or to another list",
		Long: `Moves a card. With --list the card joins that list (appended unless
--position is given); without it the card is reordered in its own list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f card.UpdateFields
			if cmd.Flags().Changed("list") {
				f.ListID = &listID
			}
			if cmd.Flags().Changed("position") {
				f.Position = &target
			}
			if f.IsZero() {
				return fmt.Errorf("one of --list or --position is required")
			}
			return runCardMove(cmd, configPath, args[0], f, actor)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringVar(&listID, "list", "", "destination list id")
	cmd.Flags().IntVar(&target, "position", 0, "target position (0-based)")
	return cmd
}

func runCardMove(cmd *cobra.Command, configPath, id string, f card.UpdateFields, actor string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	c, _, err := e.cards.UpdateCard(cmd.Context(), id, f, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved card %s to list %s position %d\n", c.ID, c.ListID, c.Position)
	return nil
}

func newCardProgressCmd() *cobra.Command {
	var configPath, actor string

	cmd := &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Raise a card's progress",
		Long:  "Sets progress to a value between 0 and 100. Progress never decreases.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid progress %q: %w", args[1], err)
			}
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			c, err := e.cards.UpdateProgress(cmd.Context(), args[0], pct, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %s progress: %d%%\n", c.ID, c.Progress)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	return cmd
}

func newCardDepsCmd() *cobra.Command {
	var (
		configPath, actor string
		set               []string
		clearAll          bool
	)

	cmd := &cobra.Command{
		Use:   "deps <id>",
		Short: "Show or replace a card's dependencies",
		Long: `Without flags, prints the cards this card depends on. --set replaces
the dependency set; --clear removes every dependency. A replacement that
would close a cycle is rejected with the cycle path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll && len(set) > 0 {
				return fmt.Errorf("--set and --clear are mutually exclusive")
			}
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			if !clearAll && len(set) == 0 {
				c, err := e.cards.GetCard(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				deps := c.DependencyIDs()
				if len(deps) == 0 {
					fmt.Fprintf(out, "Card %s has no dependencies\n", c.ID)
					return nil
				}
				fmt.Fprintf(out, "Card %s depends on:\n", c.ID)
				for _, d := range deps {
					fmt.Fprintf(out, "  %s\n", d)
				}
				return nil
			}

			deps := set
			if clearAll {
				deps = []string{}
			}
			c, _, err := e.cards.UpdateCard(cmd.Context(), args[0], card.UpdateFields{Dependencies: &deps}, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Card %s depends on: %s\n", c.ID, joinOrDash(c.DependencyIDs()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringSliceVar(&set, "set", nil, "replace dependencies with these card ids")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove every dependency")
	return cmd
}

func newCardDeleteCmd() *cobra.Command {
	var configPath, actor string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a card",
		Long:  "Deletes a card with its comments, sub-tasks and other owned rows. Edges from dependent cards are removed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			boardID, err := e.cards.DeleteCard(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted card %s from board %s\n", args[0], boardID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	return cmd
}
