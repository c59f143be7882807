package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List management commands",
	}

	cmd.AddCommand(newListCreateCmd())
	cmd.AddCommand(newListMoveCmd())
	cmd.AddCommand(newListDeleteCmd())
	return cmd
}

func newListCreateCmd() *cobra.Command {
	var configPath, actor, boardID, name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Append a list to a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.boards.CreateList(cmd.Context(), boardID, name, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created list %s at position %d\n", l.ID, l.Position)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().StringVar(&boardID, "board", "", "board id (required)")
	cmd.Flags().StringVar(&name, "name", "", "list name (required)")
	cmd.MarkFlagRequired("board")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newListMoveCmd() *cobra.Command {
	var (
		configPath, actor string
		target            int
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a list to another position on its board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.boards.MoveList(cmd.Context(), args[0], target, actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved list %s to position %d\n", l.ID, l.Position)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	cmd.Flags().IntVar(&target, "position", 0, "target position (0-based)")
	cmd.MarkFlagRequired("position")
	return cmd
}

func newListDeleteCmd() *cobra.Command {
	var configPath, actor string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a list and every card on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.boards.DeleteList(cmd.Context(), args[0], actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted list %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&actor, "actor", "cli", "user performing the change")
	return cmd
}
