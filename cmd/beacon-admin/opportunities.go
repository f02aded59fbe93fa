package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/app"
	"beacon/internal/models"
	"beacon/internal/report"
)

var publishCmd = &cobra.Command{
	Use:   "publish <opportunity-id>",
	Short: "Approve an opportunity for public listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := actor(ctx, cmd, a)
			if err != nil {
				return err
			}
			o, err := a.Opportunities.Publish(ctx, id, user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d %q (notified: %s)\n", o.ID, o.Title, yesNo(o.PublishNotificationSent))
			return nil
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <opportunity-id>",
	Short: "Withdraw an opportunity from every listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := actor(ctx, cmd, a)
			if err != nil {
				return err
			}
			o, err := a.Opportunities.Archive(ctx, id, user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d %q\n", o.ID, o.Title)
			return nil
		})
	},
}

var removeDocumentCmd = &cobra.Command{
	Use:   "remove-document <opportunity-id> <document-id>",
	Short: "Delete one attached document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oppID, err := parseID(args[0])
		if err != nil {
			return err
		}
		docID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := actor(ctx, cmd, a)
			if err != nil {
				return err
			}
			return a.Opportunities.RemoveDocument(ctx, oppID, docID, user)
		})
	},
}

var bidDocumentsCmd = &cobra.Command{
	Use:   "bid-documents <opportunity-id>",
	Short: "List the documents bidders must supply for an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := actor(ctx, cmd, a)
			if err != nil {
				return err
			}
			o, err := a.Opportunities.Get(ctx, id, user)
			if err != nil {
				return err
			}
			if !a.Opportunities.HasVendorDocuments(o) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d %q requires no bid documents\n", o.ID, o.Title)
				return nil
			}
			docs, err := a.Opportunities.VendorDocuments(ctx, o)
			if err != nil {
				return err
			}
			report.BidDocuments(cmd.OutOrStdout(), fmt.Sprintf("Bid documents for %d", o.ID), docs)
			return nil
		})
	},
}

// listingCmd builds one of the staff listings, which all share a shape.
func listingCmd(use, short, title string, list func(*app.App) func(context.Context, *models.User) ([]*models.Opportunity, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := actor(ctx, cmd, a)
				if err != nil {
					return err
				}
				opps, err := list(a)(ctx, user)
				if err != nil {
					return err
				}
				report.Opportunities(cmd.OutOrStdout(), title, opps, a.Opportunities.State(), time.Now())
				return nil
			})
		},
	}
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Show the public listing: open and upcoming opportunities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			listing, err := a.Opportunities.Browse(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report.Opportunities(out, "Open", listing.Open, a.Opportunities.State(), time.Now())
			fmt.Fprintln(out)
			report.Opportunities(out, "Upcoming", listing.Upcoming, a.Opportunities.State(), time.Now())
			return nil
		})
	},
}

var notifyDueCmd = &cobra.Command{
	Use:   "notify-due",
	Short: "Send publish notifications for opportunities whose publish date has arrived",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Opportunities.SendDueNotifications(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notified %d opportunities\n", n)
			return nil
		})
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Mail newsletter subscribers the opportunities published since the last digest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := a.Opportunities.SendDigest(ctx)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("Digest: %d opportunities", res.Opportunities)
			report.Dispatch(cmd.OutOrStdout(), title, res.Result)
			return nil
		})
	},
}

var questionsCmd = &cobra.Command{
	Use:   "questions <opportunity-id>",
	Short: "List the questions asked about an opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		answered, _ := cmd.Flags().GetBool("answered")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := actor(ctx, cmd, a)
			if err != nil {
				return err
			}
			var qs []*models.Question
			if answered {
				qs, err = a.Questions.AnsweredQuestions(ctx, id, user)
			} else {
				qs, err = a.Questions.Questions(ctx, id, user)
			}
			if err != nil {
				return err
			}
			report.Questions(cmd.OutOrStdout(), fmt.Sprintf("Questions for %d", id), qs, a.Opportunities.State().Window().Location())
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		})
	},
}

func init() {
	questionsCmd.Flags().Bool("answered", false, "only answered questions, as the public page shows them")

	rootCmd.AddCommand(
		migrateCmd,
		publishCmd,
		archiveCmd,
		removeDocumentCmd,
		bidDocumentsCmd,
		listingCmd("pending", "List opportunities awaiting approval", "Pending approval",
			func(a *app.App) func(context.Context, *models.User) ([]*models.Opportunity, error) {
				return a.Opportunities.Pending
			}),
		listingCmd("approved", "List approved opportunities not yet published", "Approved",
			func(a *app.App) func(context.Context, *models.User) ([]*models.Opportunity, error) {
				return a.Opportunities.Approved
			}),
		listingCmd("expired", "List public opportunities whose submission window closed", "Expired",
			func(a *app.App) func(context.Context, *models.User) ([]*models.Opportunity, error) {
				return a.Opportunities.Expired
			}),
		browseCmd,
		notifyDueCmd,
		digestCmd,
		questionsCmd,
	)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
