// cmd/rentflow/config.go
package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/rentflow/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rentflow configuration",
		Long:  `Commands for managing rentflow configuration files.`,
	}

	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigShowCmd(a))

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented rentflow.toml with the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := config.NewConfigWriter(a.cfg.Client.DataDir)
			if w.Exists() && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", w.Path())
			}
			if err := w.Write(a.cfg); err != nil {
				return err
			}
			a.out.Success("wrote %s", w.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  `Displays the effective configuration after merging defaults, file, environment variables and flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			cfg.History.DSN = maskDSN(cfg.History.DSN)

			if a.out.IsJSONMode() {
				return a.out.JSON(cfg)
			}
			printConfig(a.out.Writer(), &cfg)
			return nil
		},
	}

	return cmd
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Effective rentflow configuration:")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[client]")
	fmt.Fprintf(w, "  data_dir  = %q\n", cfg.Client.DataDir)
	fmt.Fprintf(w, "  log_level = %q\n", cfg.Client.LogLevel)
	fmt.Fprintf(w, "  network   = %q\n", cfg.Client.Network)
	fmt.Fprintf(w, "  wallet    = %q\n", cfg.Client.Wallet)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[fees]")
	fmt.Fprintf(w, "  base_fee = %d\n", cfg.Fees.BaseFee)
	fmt.Fprintf(w, "  buffer   = %q\n", cfg.Fees.Buffer)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[fees.schedule]")
	fmt.Fprintf(w, "  fee_per_10k_instructions = %d\n", cfg.Fees.Schedule.FeePer10KInstructions)
	fmt.Fprintf(w, "  fee_per_read_kb          = %d\n", cfg.Fees.Schedule.FeePerReadKB)
	fmt.Fprintf(w, "  fee_per_write_kb         = %d\n", cfg.Fees.Schedule.FeePerWriteKB)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[signer]")
	fmt.Fprintf(w, "  agent   = %q\n", cfg.Signer.Agent)
	fmt.Fprintf(w, "  url     = %q\n", cfg.Signer.URL)
	fmt.Fprintf(w, "  timeout = %s\n", cfg.Signer.Timeout)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[tracking]")
	fmt.Fprintf(w, "  interval = %s\n", cfg.Tracking.Interval)
	fmt.Fprintf(w, "  timeout  = %s\n", cfg.Tracking.Timeout)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[history]")
	fmt.Fprintf(w, "  url     = %q\n", cfg.History.URL)
	fmt.Fprintf(w, "  listen  = %q\n", cfg.History.Listen)
	fmt.Fprintf(w, "  backend = %q\n", cfg.History.Backend)
	fmt.Fprintf(w, "  path    = %q\n", cfg.History.Path)
	fmt.Fprintf(w, "  dsn     = %q\n", cfg.History.DSN)

	names := make([]string, 0, len(cfg.Networks))
	for name := range cfg.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Networks[name]
		fmt.Fprintln(w)
		fmt.Fprintf(w, "[networks.%s]\n", name)
		fmt.Fprintf(w, "  passphrase   = %q\n", p.Passphrase)
		fmt.Fprintf(w, "  rpc_endpoint = %q\n", p.RPCEndpoint)
		fmt.Fprintf(w, "  horizon_url  = %q\n", p.HorizonURL)
	}
}

// maskDSN hides the password of a connection string.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return maskKeywordPassword(dsn)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "redacted")
	}
	return u.String()
}

// maskKeywordPassword masks password=... in key/value style connection strings.
func maskKeywordPassword(dsn string) string {
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=redacted"
		}
	}
	return strings.Join(fields, " ")
}
