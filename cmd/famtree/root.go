package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"famtree/internal/genealogy/models"
	"famtree/internal/genealogy/verifier"
	"famtree/internal/platform/config"
	"famtree/internal/platform/metrics"
	"famtree/pkg/requestcontext"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "famtree",
		Short:         "famtree - genealogical relationship graph",
		Long:          `famtree keeps family trees built from a shared relationship graph consistent, and answers who may see which relatives.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	// withApp loads config, wires the service and runs fn with a context
	// stamped with one operation time and correlation id.
	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx := requestcontext.WithTime(cmd.Context(), time.Now())
		ctx = requestcontext.EnsureCorrelationID(ctx)
		a, err := openApp(ctx, cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a)
	}

	root.AddCommand(
		newVerifyCmd(withApp),
		newViewCmd(withApp),
		newCommonCmd(withApp),
		newStatsCmd(withApp),
		newAuditCmd(withApp),
		newBatchCmd(withApp),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error

func newVerifyCmd(withApp runner) *cobra.Command {
	var (
		owner       string
		strict      bool
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the consistency checks on one tree or all of them",
		Long: `Run the advisory consistency checks: reciprocity, parent cardinality,
self links and temporal order. Findings are reported, never repaired.

Examples:
  famtree verify                 # every tree
  famtree verify --owner 1001    # one owner's tree
  famtree verify --strict        # exit non-zero on findings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var total int
				if owner != "" {
					report, err := a.svc.Verify(ctx, owner)
					if err != nil {
						return err
					}
					total = printReport(cmd.OutOrStdout(), owner, report)
				} else {
					for _, report := range a.svc.VerifyAll(ctx) {
						total += printReport(cmd.OutOrStdout(), report.TreeID.String(), report)
					}
				}
				if showMetrics {
					if err := metrics.WriteSummary(cmd.OutOrStdout(), a.metrics); err != nil {
						return err
					}
				}
				if strict && total > 0 {
					return fmt.Errorf("%d consistency violation(s)", total)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "identifier of the tree owner")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when violations are found")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print counters after the run")
	return cmd
}

func newViewCmd(withApp runner) *cobra.Command {
	var owner, viewer string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "List the members of a tree visible to a viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				members, err := a.svc.View(ctx, owner, viewer)
				if err != nil {
					return err
				}
				return printPersons(cmd.OutOrStdout(), members)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "identifier of the tree owner")
	cmd.Flags().StringVar(&viewer, "viewer", "", "identifier of the viewer")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("viewer")
	return cmd
}

func newCommonCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "common <owner-a> <owner-b>",
		Short: "List the persons present in both trees",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				members, err := a.svc.CommonMembers(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printPersons(cmd.OutOrStdout(), members)
			})
		},
	}
}

func newStatsCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show tree consultation counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				stats, err := a.consultations.Stats(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TREE\tVIEWS\tLAST VIEWED")
				for _, s := range stats {
					fmt.Fprintf(w, "%s\t%d\t%s\n", s.TreeID, s.Views, s.LastViewedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func newAuditCmd(withApp runner) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recorded audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				events, err := a.audit.List(ctx, subject)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tCATEGORY\tACTION\tSUBJECT\tACTOR\tDECISION")
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						e.Timestamp.Format(time.RFC3339), e.Category, e.Action, e.SubjectID, e.ActorID, e.Decision)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identity of the person the events are about")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func printPersons(out io.Writer, persons []*models.Person) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tNAME\tGENDER\tBORN\tGENERATION\tVISIBILITY")
	for _, p := range persons {
		born := "-"
		if p.HasBirthDate() {
			born = p.BirthDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.Identity(), p.DisplayName(), p.Gender, born, p.Generation, p.Visibility)
	}
	return w.Flush()
}

func printReport(out io.Writer, label string, report verifier.Report) int {
	if report.OK() {
		fmt.Fprintf(out, "%s: ok\n", label)
		return 0
	}
	fmt.Fprintf(out, "%s: %d violation(s)\n", label, len(report.Violations))
	for _, v := range report.Violations {
		fmt.Fprintf(out, "  %s %s -> %s %s: %s\n", v.Check, v.Subject, v.Other, v.Kind, v.Detail)
	}
	return len(report.Violations)
}
