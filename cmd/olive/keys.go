package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manash/olive/internal/keys"
)

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage stored API keys",
		Long: fmt.Sprintf(`Keys manages the credentials kept in keys.json under the config directory.

Known names: %s

A key given with --anthropic-key/--openai-key wins over a stored key, and a
stored key wins over the environment.`, strings.Join(keys.Names(), ", ")),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> [key]",
		Short: "Store a key (prompts when the key is omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runKeysSet(app, args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <name>",
		Short: "Show a key, masked, and where it resolves from",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runKeysGet(app, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a stored key",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := app.NewKeyStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s key\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show which keys resolve",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runKeysList(app)
		},
	})

	return cmd
}

func runKeysSet(app *App, args []string) error {
	name := args[0]
	if err := keys.Validate(name); err != nil {
		return err
	}

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		fmt.Fprintf(app.Out, "Enter %s key: ", name)
		v, err := readKey(app)
		fmt.Fprintln(app.Out)
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		value = v
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("key cannot be empty")
	}

	store, err := app.NewKeyStore()
	if err != nil {
		return err
	}
	if err := store.Set(name, value); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Saved %s key %s to %s\n", name, keys.MaskKey(value), store.Path())
	return nil
}

// readKey reads without echo on a terminal and falls back to a plain line
// read when input is piped.
func readKey(app *App) (string, error) {
	if app.IsTerminal() && app.ReadSecret != nil {
		return app.ReadSecret()
	}
	line, err := bufio.NewReader(app.In).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}

func runKeysGet(app *App, name string) error {
	store, err := app.NewKeyStore()
	if err != nil {
		return err
	}
	key, source, err := store.Resolve("", name)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "%s: %s (%s)\n", name, keys.MaskKey(key), source)
	return nil
}

func runKeysList(app *App) error {
	store, err := app.NewKeyStore()
	if err != nil {
		return err
	}
	stored, err := store.List()
	if err != nil {
		return err
	}
	isStored := make(map[string]bool, len(stored))
	for _, name := range stored {
		isStored[name] = true
	}

	status := store.Status()
	for _, name := range keys.Names() {
		state := "missing"
		switch {
		case isStored[name]:
			state = "stored"
		case status[name]:
			state = "env " + keys.EnvVars[name]
		}
		fmt.Fprintf(app.Out, "%-14s %s\n", name, state)
	}
	return nil
}
