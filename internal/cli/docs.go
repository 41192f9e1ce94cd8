package cli

import (
	"fmt"
	"strings"

	"dayplan-cli/internal/docs"

	"github.com/spf13/cobra"
)

func newDocsCmd(app *App) *cobra.Command {
	var (
		raw   bool
		style string
		width int
	)

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show built-in documentation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"topics": docs.Topics()}})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (valid: %s)", topic, strings.Join(docs.Topics(), "|")))
			}

			switch {
			case raw:
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			case app.Format == "text":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), docs.Render(body, docs.Style(style), width))
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"topic": topic, "markdown": body}})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no envelope)")
	cmd.Flags().StringVar(&style, "style", envOr("DAYPLAN_MD_STYLE", ""), "Markdown style for --format text (dark|light; default plain)")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --format text")

	return cmd
}
