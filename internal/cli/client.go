package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridichain/veridi/internal/api"
	"github.com/veridichain/veridi/internal/domain"
)

// ─── API Client ─────────────────────────────────────────────────────────────
// report and audit talk to a running server: the ledger lives in that process.

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(accountsCmd)

	for _, c := range []*cobra.Command{reportCmd, auditCmd} {
		c.Flags().String("server", "", "server base URL (default from [api] host/port)")
	}
}

// client calls the Veridi API as a given role.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: 30 * time.Second}}
}

// call sends a request and returns the decoded JSON body. Non-2xx responses
// become errors carrying the server's message.
func (c *client) call(ctx context.Context, method, path string, role domain.Role) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.RoleHeader, role.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the server running? %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		return body, fmt.Errorf("%s %s: %d %v", method, path, resp.StatusCode, body["message"])
	}
	return body, nil
}

func serverURL(cmd *cobra.Command) (string, error) {
	if s, _ := cmd.Flags().GetString("server"); s != "" {
		return s, nil
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return "", err
	}
	return "http://" + cfg.Addr(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ─── report ─────────────────────────────────────────────────────────────────

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the compliance report",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := serverURL(cmd)
		if err != nil {
			return err
		}
		body, err := newClient(base).call(cmd.Context(), http.MethodGet, "/api/compliance-report", domain.RolePollutionBody)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), body["report"])
	},
}

// ─── audit ──────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run a system audit as the government",
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := serverURL(cmd)
		if err != nil {
			return err
		}
		body, err := newClient(base).call(cmd.Context(), http.MethodPost, "/api/gov/audit", domain.RoleGovernment)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), body["audit_results"])
	},
}

// ─── accounts ───────────────────────────────────────────────────────────────

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the role to address bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProvisioned()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROLE\tADDRESS")
		for _, a := range cfg.Accounts {
			fmt.Fprintf(tw, "%s\t%s\n", a.Role.Title(), a.Address)
		}
		return tw.Flush()
	},
}
