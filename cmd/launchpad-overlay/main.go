// Command launchpad-overlay is a headless stand-in for the overlay
// process described by spec.md section 4.6. Rendering the actual search
// bar is an explicit Non-goal (HTML/JS/CSS UI); this binary exercises the
// daemon-facing contract and prints the events a real UI would render,
// reading search queries from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/launchpad-go/launchpad/internal/bus"
	"github.com/launchpad-go/launchpad/internal/overlaycli"
)

func main() {
	addr := flag.String("addr", bus.DefaultClientConfig().Addr, "daemon bus address")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := overlaycli.DefaultConfig()
	cfg.Addr = *addr

	o := overlaycli.New(cfg, overlaycli.Hooks{
		OnShow: func(query *string) {
			if query != nil {
				fmt.Printf("[overlay] show (query=%q)\n", *query)
				return
			}
			fmt.Println("[overlay] show")
		},
		OnHide: func() { fmt.Println("[overlay] hide") },
		OnResults: func(results []bus.SearchResult) {
			fmt.Printf("[overlay] %d result(s):\n", len(results))
			for _, r := range results {
				fmt.Printf("  %-24s %-30s %.3f\n", r.ID, r.Title, r.Score)
			}
		},
		OnModuleChanged: func(moduleID string) { fmt.Printf("[overlay] module changed: %s\n", moduleID) },
		OnActionResult: func(result bus.ActionResultPayload) {
			if result.OK {
				fmt.Printf("[overlay] action %s on %s: ok\n", result.ActionType, result.ResultID)
				return
			}
			fmt.Printf("[overlay] action %s on %s: failed: %s\n", result.ActionType, result.ResultID, result.Error)
		},
	})

	go readSearchQueries(ctx, o)

	if err := o.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "launchpad-overlay: %v\n", err)
		os.Exit(1)
	}
}

// readSearchQueries turns each stdin line into a SearchQuery, standing in
// for the keystroke-batch trigger a real search bar would provide.
func readSearchQueries(ctx context.Context, o *overlaycli.Overlay) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := scanner.Text()
		if err := o.Search(text, "", 20, 3000); err != nil {
			fmt.Fprintf(os.Stderr, "launchpad-overlay: search: %v\n", err)
		}
	}
}
