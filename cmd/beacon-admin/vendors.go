package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"beacon/internal/app"
	"beacon/internal/models"
	"beacon/internal/report"
	"beacon/internal/store"
	"beacon/internal/vendor"
)

var exportVendorsCmd = &cobra.Command{
	Use:   "export-vendors",
	Short: "Write every vendor signup as tab-separated values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("output")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			vendors, err := a.Vendors.All(ctx)
			if err != nil {
				return err
			}
			names, err := exportNames(ctx, a, vendors)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				w = f
			}
			return report.WriteVendorTSV(w, vendors, names)
		})
	},
}

// exportNames loads the category and opportunity names the export groups
// refer to.
func exportNames(ctx context.Context, a *app.App, vendors []*models.Vendor) (report.Names, error) {
	names := report.Names{
		Categories:    map[int64]string{},
		Opportunities: map[int64]string{},
	}
	opps, err := a.Store.Opportunities().Query(ctx, store.OpportunityFilter{})
	if err != nil {
		return names, err
	}
	for _, o := range opps {
		names.Opportunities[o.ID] = o.Title
	}

	var ids []int64
	for _, v := range vendors {
		ids = append(ids, v.CategoryIDs...)
	}
	if len(ids) == 0 {
		return names, nil
	}
	cats, err := a.Store.Categories().ByIDs(ctx, ids)
	if err != nil {
		return names, err
	}
	for _, c := range cats {
		names.Categories[c.ID] = c.FriendlyName()
	}
	return names, nil
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <email>",
	Short: "Remove a vendor's category, opportunity or newsletter subscriptions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var prefs vendor.Preferences
		prefs.RemoveCategoryIDs, _ = cmd.Flags().GetInt64Slice("category")
		prefs.RemoveOpportunityIDs, _ = cmd.Flags().GetInt64Slice("opportunity")
		prefs.UnsubscribeNewsletter, _ = cmd.Flags().GetBool("newsletter")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			v, err := a.Vendors.Unsubscribe(ctx, args[0], prefs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d categories, %d opportunities, newsletter %s\n",
				v.Email, len(v.CategoryIDs), len(v.OpportunityIDs), yesNo(v.SubscribedToNewsletter))
			return nil
		})
	},
}

func init() {
	exportVendorsCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	unsubscribeCmd.Flags().Int64Slice("category", nil, "category ids to drop")
	unsubscribeCmd.Flags().Int64Slice("opportunity", nil, "opportunity ids to drop")
	unsubscribeCmd.Flags().Bool("newsletter", false, "stop the newsletter digest")

	rootCmd.AddCommand(exportVendorsCmd, unsubscribeCmd)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
