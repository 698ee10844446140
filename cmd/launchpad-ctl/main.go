// Command launchpad-ctl is the configuration CLI from spec.md section 6:
// show, set-shortcut, module, set-theme, set-size, export, import, reset.
package main

import (
	"fmt"
	"os"

	"github.com/launchpad-go/launchpad/internal/config"
	"github.com/spf13/cobra"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "launchpad-ctl",
	Short: "Inspect and edit the launchpad configuration file",
	Long: `launchpad-ctl reads and writes the launcher's persisted
configuration: the global hotkey, per-module enable state, UI theme and
window size.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "path to config.json (defaults to the OS user config dir)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setShortcutCmd)
	rootCmd.AddCommand(moduleCmd)
	rootCmd.AddCommand(setThemeCmd)
	rootCmd.AddCommand(setSizeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*config.Store, error) {
	path := configPathFlag
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}
	return config.New(path)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "launchpad-ctl: %v\n", err)
	os.Exit(1)
}
