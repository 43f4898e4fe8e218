// Package extract implements the one-shot extraction command.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sss97133/nuke-sub008/cmd/common"
	"github.com/sss97133/nuke-sub008/internal/domain"
	"github.com/sss97133/nuke-sub008/internal/fetch"
	"github.com/sss97133/nuke-sub008/internal/monitor"
)

// Command returns the extract command.
func Command(cfgFile *string) *cobra.Command {
	var (
		forceRender  bool
		persist      bool
		platformHint string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Fetch a listing page once and print everything extracted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfgFile, args[0], forceRender, persist, platformHint, asJSON)
		},
	}

	cmd.Flags().BoolVar(&forceRender, "render", false, "force the rendered (paid) fetch strategy")
	cmd.Flags().BoolVar(&persist, "persist", false, "register the listing and store the result")
	cmd.Flags().StringVar(&platformHint, "platform", "", "platform slug override for host detection")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw extraction result as JSON")

	return cmd
}

func run(ctx context.Context, cfgPath, url string, forceRender, persist bool, platformHint string, asJSON bool) error {
	deps, err := common.Setup(cfgPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc := common.BuildServices(deps)

	result, err := svc.Fetcher.Fetch(ctx, url, fetch.Context{
		ForceEscalation: forceRender,
		Caller:          "cli",
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}

	extraction := svc.Extractor.Extract(result.HTML, url)

	if persist {
		_, listing, regErr := svc.Registry.Register(ctx, monitor.RegisterRequest{
			URL:          url,
			PlatformHint: platformHint,
		})
		if regErr != nil {
			return fmt.Errorf("persist: %w", regErr)
		}
		fmt.Printf("registered listing %s\n", listing.ID)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(extraction)
	}

	renderTable(extraction, result.Source)
	return nil
}

// renderTable prints the extraction outcome as a two-column table,
// skipping fields nothing was recovered for.
func renderTable(res *domain.ExtractionResult, source string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})

	t.AppendRow(table.Row{"Fetch source", source})
	appendString(t, "VIN", res.VIN)
	appendInt(t, "Year", res.Year)
	appendString(t, "Make", res.Make)
	appendString(t, "Model", res.Model)
	appendInt(t, "Mileage", res.Mileage)
	appendString(t, "Exterior", res.ExteriorColor)
	appendString(t, "Interior", res.InteriorColor)
	appendString(t, "Transmission", res.Transmission)
	appendString(t, "Drivetrain", res.Drivetrain)
	appendString(t, "Engine", res.Engine)
	appendString(t, "Body style", res.BodyStyle)
	appendString(t, "Seller", res.Seller)
	appendString(t, "Buyer", res.Buyer)
	appendMoney(t, "Sale price", res.SalePrice)
	appendMoney(t, "High bid", res.HighBid)
	appendInt(t, "Bids", res.BidCount)
	appendInt(t, "Comments", res.CommentCount)
	appendInt(t, "Views", res.ViewCount)
	appendInt(t, "Watchers", res.WatcherCount)
	if res.EndDate != nil {
		t.AppendRow(table.Row{"Ends", res.EndDate.Format(time.RFC3339)})
	}
	if res.AuctionEnded {
		t.AppendRow(table.Row{"Ended", "yes"})
	}
	t.AppendRow(table.Row{"Images found", strconv.Itoa(len(res.ImageURLs))})
	t.AppendRow(table.Row{"Comments parsed", strconv.Itoa(len(res.Comments))})

	t.Render()
}

func appendString(t table.Writer, label string, val *string) {
	if val != nil {
		t.AppendRow(table.Row{label, *val})
	}
}

func appendInt(t table.Writer, label string, val *int) {
	if val != nil {
		t.AppendRow(table.Row{label, strconv.Itoa(*val)})
	}
}

func appendMoney(t table.Writer, label string, amount *int64) {
	if amount != nil {
		t.AppendRow(table.Row{label, fmt.Sprintf("$%d", *amount)})
	}
}
