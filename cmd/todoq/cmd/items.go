package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"todoq/backend"
	"todoq/internal/reconcile"
	"todoq/internal/utils"
)

// newListCmd creates the 'ls' subcommand
func newListCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "Print the list",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), env)
		},
	}
}

// newAddCmd creates the 'add' subcommand
func newAddCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title...>",
		Short: "Add an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return runMutation(cmd.Context(), env, "add", backend.NoID, func(ctx context.Context, c *reconcile.Cache) (*reconcile.Mutation, error) {
				return c.Add(ctx, title)
			})
		},
	}
}

// newEditCmd creates the 'edit' subcommand
func newEditCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <title...>",
		Short: "Change the title of an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := backend.ParseItemID(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			return runMutation(cmd.Context(), env, "edit", id, func(ctx context.Context, c *reconcile.Cache) (*reconcile.Mutation, error) {
				return c.Update(ctx, id, title)
			})
		},
	}
}

// newRemoveCmd creates the 'rm' subcommand
func newRemoveCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := backend.ParseItemID(args[0])
			if err != nil {
				return err
			}
			return runMutation(cmd.Context(), env, "rm", id, func(ctx context.Context, c *reconcile.Cache) (*reconcile.Mutation, error) {
				return c.Delete(ctx, id)
			})
		},
	}
}

// runList loads the list and prints it
func runList(ctx context.Context, env *environment) error {
	a, err := openApp(env, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.cache.Refresh(ctx); err != nil {
		return a.presentError(err)
	}
	return printList(env, a.cache.Items())
}

// runMutation loads the list, starts one mutation, waits for it to settle and
// prints the resulting list
func runMutation(ctx context.Context, env *environment, action string, id backend.ItemID, start func(context.Context, *reconcile.Cache) (*reconcile.Mutation, error)) error {
	a, err := openApp(env, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.cache.Refresh(ctx); err != nil {
		return a.presentError(err)
	}

	m, err := start(ctx, a.cache)
	if err != nil {
		return describeStartError(err, id)
	}
	if err := m.Wait(ctx); err != nil {
		return a.presentError(err)
	}

	// The settled state may still lack the server's view (an add's id arrives
	// with the resync), so read the list once more before printing.
	if err := a.cache.Refresh(ctx); err != nil && !errors.Is(err, reconcile.ErrFetchSuperseded) {
		a.log.WithError(err).Warn("could not reload the list after the change")
	}
	items := a.cache.Items()

	if env.jsonOutput() {
		return outputActionJSON(env.stdout, action, m, items)
	}
	_, _ = fmt.Fprintln(env.stdout, actionSummary(action, m))
	return printList(env, items)
}

// describeStartError maps local refusals to CLI errors with suggestions
func describeStartError(err error, id backend.ItemID) error {
	switch {
	case errors.Is(err, reconcile.ErrItemNotFound):
		return utils.ErrItemNotFound(id.String())
	case errors.Is(err, reconcile.ErrUnconfirmedItem):
		return utils.WrapWithSuggestion(err, "Wait until the item is saved, then try again")
	}
	var ve *utils.ValidationError
	if errors.As(err, &ve) && ve.Field == "title" {
		return utils.WrapWithSuggestion(err, "Give the item a title, e.g. todoq add \"Buy milk\"")
	}
	return err
}

func actionSummary(action string, m *reconcile.Mutation) string {
	switch action {
	case "add":
		if r := m.Result(); r != nil && r.Confirmed() {
			return fmt.Sprintf("Added %q (id %s)", r.Title, r.ID)
		}
		return fmt.Sprintf("Added %q", m.Title)
	case "edit":
		return fmt.Sprintf("Renamed item %s to %q", m.ItemID, m.Title)
	case "rm":
		return fmt.Sprintf("Deleted item %s", m.ItemID)
	}
	return action
}

// printList writes the list as text or JSON
func printList(env *environment, items backend.ItemList) error {
	if env.jsonOutput() {
		return outputListJSON(env.stdout, items)
	}
	printItems(env.stdout, items)
	return nil
}

func printItems(w io.Writer, items backend.ItemList) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w, "No items")
		return
	}
	width := 1
	for _, it := range items {
		if n := len(it.ID.String()); n > width {
			width = n
		}
	}
	for _, it := range items {
		id := it.ID.String()
		if !it.Confirmed() {
			id = "-"
		}
		_, _ = fmt.Fprintf(w, "%*s  %s\n", width, id, it.Title)
	}
}

// =============================================================================
// JSON Output
// =============================================================================

type itemJSON struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type listResponse struct {
	Items  []itemJSON `json:"items"`
	Count  int        `json:"count"`
	Result string     `json:"result"`
}

type actionResponse struct {
	Action   string     `json:"action"`
	Mutation string     `json:"mutation"`
	Item     *itemJSON  `json:"item,omitempty"`
	Items    []itemJSON `json:"items"`
	Count    int        `json:"count"`
	Result   string     `json:"result"`
}

func itemsToJSON(items backend.ItemList) []itemJSON {
	out := make([]itemJSON, 0, len(items))
	for _, it := range items {
		out = append(out, itemJSON{ID: int64(it.ID), Title: it.Title})
	}
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	jsonBytes, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(jsonBytes))
	return nil
}

// outputListJSON outputs the list in JSON format
func outputListJSON(w io.Writer, items backend.ItemList) error {
	out := itemsToJSON(items)
	return writeJSON(w, listResponse{Items: out, Count: len(out), Result: ResultInfoOnly})
}

// outputActionJSON outputs a settled mutation and the resulting list in JSON format
func outputActionJSON(w io.Writer, action string, m *reconcile.Mutation, items backend.ItemList) error {
	out := itemsToJSON(items)
	response := actionResponse{
		Action:   action,
		Mutation: m.ID,
		Items:    out,
		Count:    len(out),
		Result:   ResultActionCompleted,
	}
	switch {
	case m.Result() != nil && m.Result().Confirmed():
		response.Item = &itemJSON{ID: int64(m.Result().ID), Title: m.Result().Title}
	case action == "edit":
		response.Item = &itemJSON{ID: int64(m.ItemID), Title: m.Title}
	}
	return writeJSON(w, response)
}
