package cli

import (
	"dayplan-cli/internal/model"
	"dayplan-cli/internal/session"

	"github.com/spf13/cobra"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with the local task list",
	}

	cmd.AddCommand(newTasksAddCmd(app))
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksRemoveCmd(app))
	cmd.AddCommand(newTasksClearCmd(app))

	return cmd
}

func newTasksAddCmd(app *App) *cobra.Command {
	var name string
	var deadline string
	var complexity string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task locally and submit it to the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := session.ParseComplexity(complexity)
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			res, err := e.sess.AddTask(cmd.Context(), session.TaskInput{Name: name, Deadline: deadline, ComplexityHours: hours})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Task name")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline as dd.MM.yyyy")
	cmd.Flags().StringVar(&complexity, "complexity", "", "Estimated hours (whole number > 0)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("complexity")

	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var ordered bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks (canonical list, or the last server ordering with --ordered)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			snap := e.sess.Snapshot()
			tasks := snap.Tasks
			if ordered {
				tasks = snap.OrderedTasks
			}
			if tasks == nil {
				tasks = []model.Task{}
			}
			return writeOut(cmd, app, map[string]any{"data": tasks})
		},
	}

	cmd.Flags().BoolVar(&ordered, "ordered", false, "Show the ordered view")

	return cmd
}

func newTasksRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a task from the local lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			found, err := e.sess.RemoveTask(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if !found {
				return writeErr(cmd, errNotFound("task", args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"removed": args[0]}})
		},
	}
}

func newTasksClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all locally stored data for the current user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.open(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if err := e.sess.Clear(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"cleared": e.ident.ID}})
		},
	}
}
