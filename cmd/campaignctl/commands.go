package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mliell/crowdmint/internal/app"
	"github.com/mliell/crowdmint/internal/metadata"
	"github.com/mliell/crowdmint/internal/model"
	"github.com/mliell/crowdmint/internal/repository"
	"github.com/spf13/cobra"
)

func refreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one full refresh pass against the registry and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(opts.loadConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			started := time.Now()
			a.Campaigns.Refresh(cmd.Context())
			snapshot := a.Campaigns.GetCampaigns(cmd.Context())
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), snapshot.Campaigns)
			}

			renderCampaigns(cmd.OutOrStdout(), snapshot.Campaigns)
			status := a.Campaigns.Status()
			if status.LastRun != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d addresses, %d campaigns, %d failed in %s\n",
					status.LastRun.AddressCount, status.LastRun.CampaignCount, status.LastRun.FailedCount,
					time.Since(started).Round(time.Millisecond))
			}
			return nil
		},
	}
}

func getCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <address>",
		Short: "Fetch a single campaign live from the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(opts.loadConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			campaign, err := a.Campaigns.Campaign(cmd.Context(), address)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), campaign)
			}
			renderCampaigns(cmd.OutOrStdout(), []model.CampaignRecord{*campaign})
			return nil
		},
	}
}

func donationsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "donations <donor>",
		Short: "List the donations of an address across all cached campaigns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			donor, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			a, err := app.New(opts.loadConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			donations := a.Campaigns.Donations(cmd.Context(), donor)
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), donations)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Campaign", "Title", "Amount (USDC)", "Status"})
			for _, d := range donations {
				t.AppendRow(table.Row{d.CampaignAddress, d.CampaignTitle, d.AmountUSDC.String(), d.CampaignStatus})
			}
			t.Render()
			return nil
		},
	}
}

func classifyCmd(opts *rootOptions) *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "classify <metadata-uri>",
		Short: "Show how a metadata pointer is classified and, optionally, what it resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := args[0]
			kind := metadata.Classify(uri)
			if !resolve {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
				return nil
			}

			cfg := opts.loadConfig()
			resolver := metadata.NewResolver(cfg.Metadata.IPFSGateway, cfg.Metadata.Timeout)
			md := resolver.Resolve(cmd.Context(), uri)
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"kind": kind.String(), "metadata": md})
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendRows([]table.Row{
				{"Kind", kind},
				{"Title", md.Title},
				{"Short description", md.ShortDescription},
				{"Long description", deref(md.LongDescription)},
				{"Image", deref(md.ImageURL)},
				{"Category", deref(md.Category)},
			})
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "fetch and decode the metadata document")
	return cmd
}

func runsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent persisted refresh runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.loadConfig()
			db, err := repository.Init(cfg.Database)
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("persistence is disabled (database.driver = none)")
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runs, err := repository.NewSnapshotRepository(db).LatestRuns(ctx, limit)
			if err != nil {
				return err
			}
			if opts.output == "json" {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Run", "Started At", "Addresses", "Campaigns", "Failed", "Duration", "Registry Error"})
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.Id,
					run.StartedAt.Format(time.DateTime),
					run.AddressCount,
					run.CampaignCount,
					run.FailedCount,
					(time.Duration(run.DurationMs) * time.Millisecond).String(),
					run.RegistryError,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func renderCampaigns(w io.Writer, campaigns []model.CampaignRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Address", "Title", "Raised", "Goal", "Status", "Backers", "Deadline"})
	for _, c := range campaigns {
		t.AppendRow(table.Row{
			c.Address,
			c.Title,
			c.RaisedUSDC.String(),
			c.GoalUSDC.String(),
			c.Status,
			c.BackersCount,
			c.Deadline.Format(time.DateTime),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(campaigns)})
	t.Render()
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
