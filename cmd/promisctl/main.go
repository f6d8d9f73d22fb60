// promisctl is an operator CLI against the PROMIS Assessment Center API:
// list forms, dump a form's items, or drive the stateless assessment endpoint
// by hand.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

var (
	flagRegistration string
	flagToken        string
	flagBaseURL      string
	flagAPIVersion   string
	flagFormat       string
)

func main() {
	root := &cobra.Command{
		Use:           "promisctl",
		Short:         "CLI for the PROMIS Assessment Center API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRegistration, "registration", os.Getenv("PROMIS_REGISTRATION"),
		"registration GUID (defaults to PROMIS_REGISTRATION env var)")
	root.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("PROMIS_TOKEN"),
		"token GUID (defaults to PROMIS_TOKEN env var)")
	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", promis.DefaultBaseURL, "API base URL")
	root.PersistentFlags().StringVar(&flagAPIVersion, "api-version", promis.DefaultAPIVersion, "API version segment")
	root.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	root.AddCommand(listFormsCmd(), formDetailsCmd(), statelessCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newClient() (*promis.Client, error) {
	return promis.NewClient(flagRegistration, flagToken,
		promis.WithBaseURL(flagBaseURL),
		promis.WithAPIVersion(flagAPIVersion))
}

func listFormsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-forms",
		Short: "List available PROMIS forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			forms, err := c.ListForms(cmd.Context())
			if err != nil {
				return err
			}
			if flagFormat == "text" {
				renderFormList(cmd.OutOrStdout(), forms)
				return nil
			}
			return printJSON(cmd, forms)
		},
	}
}

func formDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "form-details <form-oid>",
		Short: "Get question and option data for a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			detail, err := c.FormDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flagFormat == "text" {
				renderFormDetails(cmd.OutOrStdout(), detail)
				return nil
			}
			return printJSON(cmd, detail)
		},
	}
}

func statelessCmd() *cobra.Command {
	var responses []string
	cmd := &cobra.Command{
		Use:   "stateless <form-oid>",
		Short: "Call the stateless assessment endpoint for a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resps, err := parseResponsePairs(responses)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			next, err := c.StatelessNext(cmd.Context(), args[0], resps)
			if err != nil {
				return err
			}
			if flagFormat == "text" {
				renderStateless(cmd.OutOrStdout(), next)
				return nil
			}
			return printJSON(cmd, next.Raw)
		},
	}
	cmd.Flags().StringArrayVar(&responses, "response", nil,
		"response to submit as ITEM=CHOICE (repeatable)")
	return cmd
}

// parseResponsePairs turns repeated ITEM=CHOICE flags into wire responses
// with 1-based order matching the flag order.
func parseResponsePairs(pairs []string) ([]promis.Response, error) {
	out := make([]promis.Response, 0, len(pairs))
	for i, raw := range pairs {
		item, choice, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid response %q: expected ITEM=CHOICE", raw)
		}
		out = append(out, promis.Response{
			ItemID:          strings.TrimSpace(item),
			ItemResponseOID: strings.TrimSpace(choice),
			Order:           i + 1,
		})
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
