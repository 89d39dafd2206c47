package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/wolfeidau/webbundle/internal/bundle"
	"github.com/wolfeidau/webbundle/internal/logger"
	"github.com/wolfeidau/webbundle/internal/tsconfig"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	detailColor = color.New(color.FgHiBlack).SprintFunc()
)

type AliasesCmd struct {
	JSON bool `help:"Print aliases as a JSON array"`

	out io.Writer
}

func (c *AliasesCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	cfg, err := globals.bundleConfig()
	if err != nil {
		return err
	}

	path := cfg.Path(cfg.Tsconfig)
	aliases, err := tsconfig.ReadPaths(path, cfg.Root(), bundle.NewFileResolver(cfg.Extensions...))
	if err != nil {
		return err
	}
	log.Debug().Str("tsconfig", path).Int("aliases", len(aliases)).Msg("Derived aliases")

	return c.print(path, aliases)
}

func (c *AliasesCmd) print(tsconfigPath string, aliases []bundle.Alias) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(aliases)
	}

	fmt.Fprintln(out, headerColor("Aliases derived from compilerOptions.paths:"))
	fmt.Fprintln(out, detailColor(tsconfigPath))

	if len(aliases) == 0 {
		fmt.Fprintln(out, "No aliases found.")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Find", "Replacement"})
	table.SetBorder(true)
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, alias := range aliases {
		table.Append([]string{alias.Find, alias.Replacement})
	}
	table.Render()
	return nil
}
