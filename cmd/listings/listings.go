// Package listings implements the tracked-listings listing command.
package listings

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sss97133/nuke-sub008/cmd/common"
	"github.com/sss97133/nuke-sub008/internal/domain"
)

// Command returns the listings command.
func Command(cfgFile *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Show tracked listings, most recently synced first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfgFile, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum listings to show")

	return cmd
}

func run(ctx context.Context, cfgPath string, limit int) error {
	deps, err := common.Setup(cfgPath)
	if err != nil {
		return err
	}
	defer deps.Close()

	svc := common.BuildServices(deps)

	records, err := svc.Listings.List(ctx, limit, 0)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Platform", "External ID", "State", "Bid", "Bids", "Ends", "Vehicle", "Synced"})

	for _, l := range records {
		t.AppendRow(table.Row{
			l.Platform,
			l.ExternalID,
			l.State,
			money(l.CurrentBid, l.FinalPrice),
			count(l.BidCount),
			endTime(l.EndTime),
			vehicle(l),
			synced(l.LastSyncedAt),
		})
	}

	t.Render()
	return nil
}

func money(currentBid, finalPrice *int64) string {
	switch {
	case finalPrice != nil:
		return "$" + strconv.FormatInt(*finalPrice, 10)
	case currentBid != nil:
		return "$" + strconv.FormatInt(*currentBid, 10)
	}
	return "-"
}

func count(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func endTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func vehicle(l *domain.ListingRecord) string {
	parts := ""
	if l.Year != nil {
		parts = strconv.Itoa(*l.Year)
	}
	if l.Make != nil {
		if parts != "" {
			parts += " "
		}
		parts += *l.Make
	}
	if l.Model != nil {
		if parts != "" {
			parts += " "
		}
		parts += *l.Model
	}
	if parts == "" {
		return "-"
	}
	return parts
}

func synced(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04")
}
