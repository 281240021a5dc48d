package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/mksouza37/listinha/pkg/billing"
)

func newAdminCmds(load loader) []*cobra.Command {
	status := &cobra.Command{
		Use:   "status ACCOUNT",
		Short: "Show the derived billing view of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(ctx context.Context, a *app) (interface{}, error) {
				return a.engine.Describe(ctx, args[0])
			})
		},
	}

	grant := &cobra.Command{
		Use:   "grant-exempt ACCOUNT",
		Short: "Exempt an account from the paywall",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolutionCmd(cmd, load, args[0], billing.ActionGrantExempt,
				func(ctx context.Context, e *billing.Engine) (billing.Resolution, error) {
					return e.GrantExempt(ctx, args[0])
				})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke-exempt ACCOUNT",
		Short: "Remove the paywall exemption of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolutionCmd(cmd, load, args[0], billing.ActionRevokeExempt,
				func(ctx context.Context, e *billing.Engine) (billing.Resolution, error) {
					return e.RevokeExempt(ctx, args[0])
				})
		},
	}

	var days int
	extend := &cobra.Command{
		Use:   "extend-trial ACCOUNT",
		Short: "Extend the trial of an account's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolutionCmd(cmd, load, args[0], billing.ActionExtendTrial,
				func(ctx context.Context, e *billing.Engine) (billing.Resolution, error) {
					return e.ExtendTrial(ctx, args[0], days)
				})
		},
	}
	extend.Flags().IntVar(&days, "days", 7, "days to add to the trial")

	refresh := &cobra.Command{
		Use:   "refresh ACCOUNT",
		Short: "Re-read an account's subscription from Stripe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolutionCmd(cmd, load, args[0], billing.ActionRefresh,
				func(ctx context.Context, e *billing.Engine) (billing.Resolution, error) {
					return e.RefreshFromProvider(ctx, args[0])
				})
		},
	}

	var instance string
	checkout := &cobra.Command{
		Use:   "checkout ACCOUNT",
		Short: "Create a subscription checkout link for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(ctx context.Context, a *app) (interface{}, error) {
				return a.engine.StartCheckout(ctx, args[0], instance)
			})
		},
	}
	checkout.Flags().StringVar(&instance, "instance", "", "instance recorded in the session metadata")

	var returnURL string
	portal := &cobra.Command{
		Use:   "portal ACCOUNT",
		Short: "Create a customer portal link for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(ctx context.Context, a *app) (interface{}, error) {
				url, err := a.engine.PortalURL(ctx, args[0], returnURL)
				if err != nil {
					return nil, err
				}
				return map[string]string{"account_id": args[0], "url": url}, nil
			})
		},
	}
	portal.Flags().StringVar(&returnURL, "return-url", "", "page the portal returns to (default DOMAIN_URL)")

	return []*cobra.Command{status, grant, revoke, extend, refresh, checkout, portal}
}

// actionOutput is printed by commands that change an account.
type actionOutput struct {
	AccountID string         `json:"account_id"`
	Action    string         `json:"action"`
	Status    billing.Status `json:"status"`
	Until     *int64         `json:"until,omitempty"`
	Entitled  bool           `json:"entitled"`
}

func resolutionCmd(cmd *cobra.Command, load loader, accountID, action string,
	run func(context.Context, *billing.Engine) (billing.Resolution, error),
) error {
	return withApp(cmd, load, func(ctx context.Context, a *app) (interface{}, error) {
		res, err := run(ctx, a.engine)
		if err != nil {
			return nil, err
		}
		return actionOutput{
			AccountID: accountID,
			Action:    action,
			Status:    res.Status,
			Until:     res.Until,
			Entitled:  res.Entitled(),
		}, nil
	})
}

// withApp loads the app, runs fn and prints its result as indented JSON.
func withApp(cmd *cobra.Command, load loader, fn func(context.Context, *app) (interface{}, error)) error {
	a, err := load(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(cmd.Context(), a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
