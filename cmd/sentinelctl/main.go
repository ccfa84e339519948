package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/ThreatSentinel/internal/identity"
	"github.com/jmerrifield20/ThreatSentinel/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL  string
	adminToken string
	cfgFile    string
	outFormat  string
	reqTimeout time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentinelctl",
	Short: "Threat Sentinel CLI",
	Long: `sentinelctl is the command-line interface for a Threat Sentinel server.

It submits event batches for classification, queries the threat tally,
runs outlier detection, looks up IP reputation and manages the security
event journal.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.sentinel")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("sentinel")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if adminToken == "" {
			adminToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sentinel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Sentinel server URL (default http://localhost:8080, env SENTINEL_URL)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "Admin bearer token (env SENTINEL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "text", "Output format: text or json")
	rootCmd.PersistentFlags().DurationVar(&reqTimeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(outliersCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(hashSecretCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(reqTimeout)}
	if adminToken != "" {
		opts = append(opts, client.WithBearerToken(adminToken))
	}
	return client.New(serverURL, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ── classify / analyze ───────────────────────────────────────────────────────

var classifyCmd = &cobra.Command{
	Use:   "classify [file.json]",
	Short: "Classify a JSON array of events (reads stdin when no file is given)",
	Long: `classify submits a batch of events and prints one detection per event.

The input is a JSON array:

  [{"message": "malware detected", "source": "10.0.0.1", "timestamp": 1700000000}]`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), args, false)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file.json]",
	Short: "Classify events and corroborate ambiguous results with reputation data",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), args, true)
	},
}

func readEvents(args []string) ([]client.Event, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var events []client.Event
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&events); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return events, nil
}

func runBatch(ctx context.Context, args []string, enrich bool) error {
	events, err := readEvents(args)
	if err != nil {
		return err
	}
	c, err := newClient()
	if err != nil {
		return err
	}

	var res *client.BatchResult
	if enrich {
		res, err = c.Analyze(ctx, events)
	} else {
		res, err = c.Classify(ctx, events)
	}
	if err != nil {
		return err
	}
	if outFormat == "json" {
		return printJSON(res)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSOURCE\tTHREAT\tCATEGORY\tSEVERITY\tCONFIDENCE\tDETAILS")
	for i, d := range res.Results {
		src := ""
		if i < len(events) {
			src = events[i].Source
		}
		details := d.Details
		if d.Verdict != nil {
			details += fmt.Sprintf(" [%s score %d]", d.Verdict.Provider, d.Verdict.Score)
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%s\t%.2f\t%s\n",
			i, src, d.IsThreat, d.Category, d.Severity, d.Confidence, details)
	}
	return w.Flush()
}

// ── summary / stats / reset ──────────────────────────────────────────────────

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the threat tally",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Summary(cmd.Context())
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(s)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COUNT\tDESCRIPTION")
		for desc, n := range s.Summary {
			fmt.Fprintf(w, "%d\t%s\n", n, desc)
		}
		fmt.Fprintf(w, "%d\tTOTAL\n", s.Total)
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print engine state sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		s, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(s)
		}
		fmt.Printf("Tracked sources: %d\n", s.TrackedSources)
		fmt.Printf("Descriptions:    %d\n", s.Descriptions)
		fmt.Printf("Threats total:   %d\n", s.ThreatsTotal)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear frequency and aggregation state (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Engine state reset")
		return nil
	},
}

// ── outliers ─────────────────────────────────────────────────────────────────

var outliersCmd = &cobra.Command{
	Use:   "outliers <value> [value] ...",
	Short: "Run statistical outlier detection over numeric samples",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		samples := make([]float64, 0, len(args))
		for _, a := range args {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("invalid sample %q: %w", a, err)
			}
			samples = append(samples, v)
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		res, err := c.DetectAnomalies(cmd.Context(), samples)
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(res)
		}
		fmt.Printf("Anomaly:     %t\n", res.IsAnomaly)
		fmt.Printf("Confidence:  %.2f\n", res.Confidence)
		fmt.Printf("Mean:        %g\n", res.Mean)
		fmt.Printf("Std dev:     %g\n", res.StdDev)
		fmt.Printf("Outliers:    %d %v\n", res.OutlierCount, res.Indices)
		fmt.Printf("Explanation: %s\n", res.Explanation)
		return nil
	},
}

// ── reputation ───────────────────────────────────────────────────────────────

var reputationCmd = &cobra.Command{
	Use:   "reputation <ip> [ip] ...",
	Short: "Look up the reputation of one or more IP addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if outFormat == "json" && len(args) == 1 {
			v, err := c.Reputation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(v)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IP\tTHREAT\tSCORE\tPROVIDER\tERROR")
		for _, ip := range args {
			v, err := c.Reputation(cmd.Context(), ip)
			if err != nil {
				fmt.Fprintf(w, "%s\t\t\t\t%s\n", ip, err.Error())
				continue
			}
			fmt.Fprintf(w, "%s\t%t\t%d\t%s\t\n", ip, v.IsThreat, v.Score, v.Provider)
		}
		return w.Flush()
	},
}

// ── scan ─────────────────────────────────────────────────────────────────────

var scanPorts string

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Probe TCP ports on a target (admin)",
	Long: `scan probes a single port or an inclusive port range:

  sentinelctl scan 10.0.0.5 --ports 22
  sentinelctl scan 10.0.0.5 --ports 1-1024`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := parsePortRange(scanPorts)
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if from == to {
			res, err := c.ScanPort(cmd.Context(), args[0], from)
			if err != nil {
				return err
			}
			if outFormat == "json" {
				return printJSON(res)
			}
			state := "closed"
			if res.Open {
				state = "open"
			}
			fmt.Printf("%s:%d %s\n", args[0], res.Port, state)
			return nil
		}

		scan, err := c.ScanNetwork(cmd.Context(), args[0], from, to)
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(scan)
		}
		if len(scan.OpenPorts) == 0 {
			fmt.Printf("No open ports on %s in %d-%d\n", scan.Target, from, to)
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tSERVICE")
		for i, p := range scan.OpenPorts {
			svc := ""
			if i < len(scan.Services) {
				svc = scan.Services[i]
			}
			fmt.Fprintf(w, "%d\t%s\n", p, svc)
		}
		return w.Flush()
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPorts, "ports", "1-1024", "Port or inclusive range (e.g. 443 or 1-1024)")
}

func parsePortRange(s string) (uint16, uint16, error) {
	lo, hi, isRange := strings.Cut(s, "-")
	from, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 16)
	if err != nil || from == 0 {
		return 0, 0, fmt.Errorf("invalid port %q", lo)
	}
	if !isRange {
		return uint16(from), uint16(from), nil
	}
	to, err := strconv.ParseUint(strings.TrimSpace(hi), 10, 16)
	if err != nil || to < from {
		return 0, 0, fmt.Errorf("invalid port range %q", s)
	}
	return uint16(from), uint16(to), nil
}

// ── logs ─────────────────────────────────────────────────────────────────────

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect and append to the security event journal",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List security journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		list, err := c.SecurityLogs(cmd.Context())
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(list)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tTIME\tTYPE\tSEVERITY\tDETAILS")
		for _, e := range list.Logs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.Index, e.Timestamp.Format(time.RFC3339), e.EventType, e.Severity, e.Details)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d entries, root %s\n", list.Count, list.Root)
		return nil
	},
}

var (
	logType     string
	logDetails  string
	logSeverity string
)

var logsAppendCmd = &cobra.Command{
	Use:   "append",
	Short: "Record a security event (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		e, err := c.LogSecurityEvent(cmd.Context(), logType, logDetails, logSeverity)
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(e)
		}
		fmt.Printf("✓ Recorded entry %d (%s)\n", e.Index, e.Hash)
		return nil
	},
}

var logsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the journal hash chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		v, err := c.VerifySecurityLogs(cmd.Context())
		if err != nil {
			return err
		}
		if !v.Valid {
			return fmt.Errorf("journal integrity check failed: %s", v.Error)
		}
		fmt.Println("✓ Journal hash chain is intact")
		return nil
	},
}

func init() {
	logsAppendCmd.Flags().StringVar(&logType, "type", "", "Event type (e.g. login_failure)")
	logsAppendCmd.Flags().StringVar(&logDetails, "details", "", "Free-form details")
	logsAppendCmd.Flags().StringVar(&logSeverity, "severity", "MEDIUM", "Severity label")
	_ = logsAppendCmd.MarkFlagRequired("type")

	logsCmd.AddCommand(logsListCmd)
	logsCmd.AddCommand(logsAppendCmd)
	logsCmd.AddCommand(logsVerifyCmd)
}

// ── login / hash-secret ──────────────────────────────────────────────────────

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Exchange the admin secret for a bearer token",
	Long: `login prompts for the admin secret and prints an admin token.

Store it in ~/.sentinel/config.yaml as "token" or export SENTINEL_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret("Admin secret: ")
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		tok, err := c.Login(cmd.Context(), secret)
		if err != nil {
			return err
		}
		if outFormat == "json" {
			return printJSON(tok)
		}
		fmt.Printf("Token (expires %s):\n%s\n", tok.ExpiresAt.Format(time.RFC3339), tok.Token)
		return nil
	},
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret",
	Short: "Generate sentinel.admin_secret_hash and a token signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := readSecret("New admin secret: ")
		if err != nil {
			return err
		}
		if len(secret) < 12 {
			return fmt.Errorf("secret must be at least 12 characters")
		}
		hash, err := identity.HashSecret(secret)
		if err != nil {
			return err
		}
		key, err := identity.RandomKey(identity.MinSigningKeyLen)
		if err != nil {
			return err
		}
		fmt.Println("sentinel:")
		fmt.Printf("  admin_secret_hash: %q\n", hash)
		fmt.Printf("  token_secret: %q\n", hex.EncodeToString(key))
		return nil
	},
}

// readSecret prompts on stderr and reads one line from stdin.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", fmt.Errorf("secret must not be empty")
	}
	return secret, nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sentinelctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sentinelctl %s (Threat Sentinel)\n", version)
	},
}
