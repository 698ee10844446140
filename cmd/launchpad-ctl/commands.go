package main

import (
	"fmt"
	"strconv"

	"github.com/launchpad-go/launchpad/internal/config"
	"github.com/launchpad-go/launchpad/internal/daemon"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fail(err)
		}
		c := store.Get()
		fmt.Printf("shortcuts.toggle_overlay: %s\n", c.Shortcuts.ToggleOverlay)
		fmt.Printf("ui.theme:                 %s\n", c.UI.Theme)
		fmt.Printf("ui.size:                  %dx%d\n", c.UI.Width, c.UI.Height)
		fmt.Printf("app.debounce_ms:          %d\n", c.App.DebounceMS)
		fmt.Printf("app.max_results:          %d\n", c.App.MaxResults)
		fmt.Printf("app.default_timeout_ms:   %d\n", c.App.DefaultTimeoutMS)
		fmt.Println("modules:")
		for id, m := range c.Modules {
			fmt.Printf("  %-16s enabled=%v\n", id, m.Enabled)
		}
	},
}

var setShortcutCmd = &cobra.Command{
	Use:   "set-shortcut <SHORTCUT>",
	Short: "Set the global toggle-overlay hotkey, e.g. CmdOrCtrl+Space",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		binding := args[0]
		if _, _, err := daemon.ParseHotkey(binding); err != nil {
			fail(fmt.Errorf("invalid shortcut: %w", err))
		}

		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if _, err := store.Mutate(func(c *config.Config) {
			c.Shortcuts.ToggleOverlay = binding
		}); err != nil {
			fail(err)
		}
		fmt.Printf("shortcut set to %s\n", binding)
	},
}

var moduleEnableFlag string

var moduleCmd = &cobra.Command{
	Use:   "module <ID>",
	Short: "Show or change a module's enabled state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		store, err := openStore()
		if err != nil {
			fail(err)
		}

		if moduleEnableFlag == "" {
			c := store.Get()
			m, ok := c.Modules[id]
			if !ok {
				fail(fmt.Errorf("unknown module %q", id))
			}
			fmt.Printf("%s: enabled=%v\n", id, m.Enabled)
			return
		}

		enabled, err := strconv.ParseBool(moduleEnableFlag)
		if err != nil {
			fail(fmt.Errorf("--enable must be true or false: %w", err))
		}

		if _, err := store.Mutate(func(c *config.Config) {
			if c.Modules == nil {
				c.Modules = map[string]config.ModuleConfig{}
			}
			m := c.Modules[id]
			m.Enabled = enabled
			c.Modules[id] = m
		}); err != nil {
			fail(err)
		}
		fmt.Printf("%s: enabled=%v\n", id, enabled)
	},
}

func init() {
	moduleCmd.Flags().StringVar(&moduleEnableFlag, "enable", "", "true or false")
}

var setThemeCmd = &cobra.Command{
	Use:   "set-theme <THEME>",
	Short: "Set the overlay UI theme",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		theme := args[0]
		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if _, err := store.Mutate(func(c *config.Config) {
			c.UI.Theme = theme
		}); err != nil {
			fail(err)
		}
		fmt.Printf("theme set to %s\n", theme)
	},
}

var setSizeCmd = &cobra.Command{
	Use:   "set-size <W> <H>",
	Short: "Set the overlay window size",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		w, err := strconv.Atoi(args[0])
		if err != nil || w <= 0 {
			fail(fmt.Errorf("invalid width %q", args[0]))
		}
		h, err := strconv.Atoi(args[1])
		if err != nil || h <= 0 {
			fail(fmt.Errorf("invalid height %q", args[1]))
		}

		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if _, err := store.Mutate(func(c *config.Config) {
			c.UI.Width = w
			c.UI.Height = h
		}); err != nil {
			fail(err)
		}
		fmt.Printf("size set to %dx%d\n", w, h)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <PATH>",
	Short: "Write the current configuration to PATH",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if err := store.Export(args[0]); err != nil {
			fail(err)
		}
		fmt.Printf("exported to %s\n", args[0])
	},
}

var importCmd = &cobra.Command{
	Use:   "import <PATH>",
	Short: "Replace the current configuration with PATH's contents",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if err := store.Import(args[0]); err != nil {
			fail(err)
		}
		fmt.Printf("imported from %s\n", args[0])
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the configuration to defaults",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fail(err)
		}
		if err := store.Reset(); err != nil {
			fail(err)
		}
		fmt.Println("configuration reset to defaults")
	},
}
