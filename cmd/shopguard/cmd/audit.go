package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/codec"
	"github.com/meatandeat/shopguard/internal/config"
	"github.com/meatandeat/shopguard/securestore"
)

var (
	auditNamespace string
	auditJSON      bool
	auditEvent     string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Security audit log tools",
	Long:  `Commands for inspecting the per-client security audit trail held in the configured store.`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the audit entries of one client namespace",
	RunE:  runAuditList,
}

var auditNamespacesCmd = &cobra.Command{
	Use:   "namespaces",
	Short: "List the client namespaces held in the store",
	RunE:  runAuditNamespaces,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditNamespacesCmd)

	auditListCmd.Flags().StringVarP(&auditNamespace, "namespace", "n", securestore.DefaultNamespace, "Client namespace to read")
	auditListCmd.Flags().BoolVar(&auditJSON, "json", false, "Output entries as JSON")
	auditListCmd.Flags().StringVar(&auditEvent, "event", "", "Only print entries with this event tag")
	auditNamespacesCmd.Flags().BoolVar(&auditJSON, "json", false, "Output namespaces as JSON")
}

// namespaceLister is implemented by substrates that can enumerate their
// namespaces.
type namespaceLister interface {
	Namespaces() ([]string, error)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sub, closeFn, err := openSubstrate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	c, err := codec.New(cfg.SecretKey)
	if err != nil {
		return err
	}
	store := securestore.New(sub, c,
		securestore.WithLogger(slog.New(slog.DiscardHandler)),
		securestore.InNamespace(auditNamespace),
	)
	entries := audit.NewLogger(store).Entries(cmd.Context())
	entries = filterEntries(entries, audit.Event(strings.ToUpper(auditEvent)))
	return writeEntries(cmd.OutOrStdout(), entries, auditJSON)
}

func runAuditNamespaces(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sub, closeFn, err := openSubstrate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	lister, ok := sub.(namespaceLister)
	if !ok {
		return fmt.Errorf("storage backend %q cannot list namespaces", cfg.StorageBackend)
	}
	names, err := lister.Namespaces()
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if auditJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(names)
	}
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}

func filterEntries(entries []audit.Entry, event audit.Event) []audit.Entry {
	if event == "" {
		return entries
	}
	var out []audit.Entry
	for _, e := range entries {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func writeEntries(w io.Writer, entries []audit.Entry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []audit.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Event, formatDetails(e.Details))
	}
	return tw.Flush()
}

// formatDetails renders details as sorted key=value pairs.
func formatDetails(d audit.Details) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return strings.Join(parts, " ")
}
