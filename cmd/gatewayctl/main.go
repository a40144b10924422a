// Command gatewayctl is a small operator CLI for inspecting the gateway's
// config store: list configured upstreams and the routes each model
// resolves to. Authored fresh (the teacher's cmd/ directory holds its own
// eval-harness and migration tools, not an admin CLI), in the same
// single-purpose-subcommand shape as cmd/migrate's internal tooling, using
// tablewriter for console output the way the teacher's go.mod carries it
// for report rendering.
package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/laisky/relay-gateway/internal/env"
	"github.com/laisky/relay-gateway/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dsn := env.String("DATABASE_DSN", "gateway.sqlite3")
	cs, err := store.NewConfigStore(dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open config store:", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "upstreams":
		printUpstreams(cs)
	case "routes":
		printRoutes(cs)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gatewayctl <upstreams|routes>")
}

func printUpstreams(cs *store.ConfigStore) {
	snapshot, err := cs.Loader()()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load snapshot:", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "API Style", "Endpoints", "Eligible"})
	for _, up := range snapshot.Upstreams {
		table.Append([]string{
			up.ID,
			string(up.APIStyle),
			fmt.Sprintf("%d", len(up.Endpoints)),
			fmt.Sprintf("%t", up.Eligible()),
		})
	}
	table.Render()
}

func printRoutes(cs *store.ConfigStore) {
	snapshot, err := cs.Loader()()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load snapshot:", err)
		os.Exit(1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Model", "Provider", "Upstream", "Priority"})
	for _, versions := range snapshot.Models {
		for _, m := range versions {
			for _, r := range m.Routes {
				priority := "unset"
				if r.Priority != nil {
					priority = fmt.Sprintf("%d", *r.Priority)
				}
				table.Append([]string{m.ID, string(r.Provider), r.UpstreamID, priority})
			}
		}
	}
	table.Render()
}
