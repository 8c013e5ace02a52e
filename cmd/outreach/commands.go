package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LeventeLantos/lead-outreach/internal/classifier"
	"github.com/LeventeLantos/lead-outreach/internal/importer"
	"github.com/LeventeLantos/lead-outreach/internal/model"
	"github.com/LeventeLantos/lead-outreach/internal/service"
)

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.csv|-]",
		Short: "Import leads from a CSV file",
		Long: `Imports leads from CSV. Required columns are name plus either phone or
country_code and phone_number; interest and email are optional.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rep, err := importer.New(store, c.log).Import(cmd.Context(), r)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
}

func (c *cli) campaignCmd() *cobra.Command {
	campaign := &cobra.Command{
		Use:   "campaign",
		Short: "Run outbound campaigns",
	}

	var (
		stage   string
		force   bool
		message string
		ids     []string
	)
	run := &cobra.Command{
		Use:   "run",
		Short: "Send one campaign stage to every eligible lead",
		Example: `  outreach campaign run --stage initial
  outreach campaign run --stage firstFollowUp --force
  outreach campaign run --stage initial --ids 3f1c...,9a0b... --message "Hi {{name}}"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, ok := model.ParseStage(stage)
			if !ok {
				return fmt.Errorf("%w: %q", service.ErrInvalidStage, stage)
			}

			a, err := c.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res, err := a.runner.Run(cmd.Context(), service.RunRequest{
				Stage:   st,
				Message: message,
				LeadIDs: ids,
				Force:   force,
			})
			if err != nil {
				return err
			}
			c.log.Info("campaign finished", zap.String("stage", stage), zap.Int("success", res.Success))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	run.Flags().StringVar(&stage, "stage", string(model.StageInitial), "initial, firstFollowUp or secondFollowUp")
	run.Flags().BoolVar(&force, "force", false, "ignore the follow-up delays")
	run.Flags().StringVar(&message, "message", "", "custom message instead of a catalog template")
	run.Flags().StringSliceVar(&ids, "ids", nil, "only these lead ids")

	campaign.AddCommand(run)
	return campaign
}

func (c *cli) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text]",
		Short: "Classify a reply and show the matched category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := c.loadTemplates()
			if err != nil {
				return err
			}
			cls := classifier.New(classifier.WithRecommender(tmpl.FirstID))
			return printJSON(cmd.OutOrStdout(), cls.Classify(strings.Join(args, " ")))
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the lead store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			c.log.Info("schema up to date", zap.String("driver", c.cfg.Database.Driver))
			return nil
		},
	}
}
