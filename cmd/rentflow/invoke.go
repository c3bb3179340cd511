// cmd/rentflow/invoke.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/rentflow/internal/lifecycle"
	"github.com/altuslabsxyz/rentflow/internal/output"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

type invokeOptions struct {
	metadata       string
	rpcURL         string
	passphrase     string
	timeoutSeconds int
	wait           bool
}

// invokeOutput is the JSON shape printed by invoke.
type invokeOutput struct {
	*lifecycle.Result
	Tracked *lifecycle.TrackedStatus `json:"tracked,omitempty"`
}

func newInvokeCmd(a *app) *cobra.Command {
	var opts invokeOptions

	cmd := &cobra.Command{
		Use:   "invoke <contract-id> <method> [arg...]",
		Short: "Build, sign and submit a contract invocation",
		Long: `Invoke a contract method. Each argument is parsed as JSON; anything that is
not valid JSON is passed as a string.

The unsigned envelope is sent to the configured signing agent. Every step is
recorded in the transaction history, and --wait polls until the ledger reports
a final outcome.`,
		Example: `  rentflow invoke CCONTRACT... deposit '"GTENANT..."' 1500 --wallet GTENANT...
  rentflow invoke CCONTRACT... pay_rent 42 --metadata '{"gas_source":"wallet"}' --wait`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInvoke(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.metadata, "metadata", "", "JSON object stored with the history record")
	cmd.Flags().StringVar(&opts.rpcURL, "rpc-url", "", "Override the network's RPC endpoint")
	cmd.Flags().StringVar(&opts.passphrase, "passphrase", "", "Override the network passphrase")
	cmd.Flags().IntVar(&opts.timeoutSeconds, "timeout-seconds", 0,
		fmt.Sprintf("Envelope validity window in seconds (default: %d)", network.DefaultTimeoutSeconds))
	cmd.Flags().BoolVar(&opts.wait, "wait", false, "Poll until the transaction reaches a final on-chain status")

	return cmd
}

func (a *app) runInvoke(cmd *cobra.Command, args []string, opts invokeOptions) error {
	ctx := cmd.Context()

	if a.cfg.Client.Wallet == "" {
		return errors.New("source account is required (use --wallet or set client.wallet)")
	}

	callArgs, err := parseInvocationArgs(args[2:])
	if err != nil {
		return err
	}
	metadata, err := parseMetadata(opts.metadata)
	if err != nil {
		return err
	}

	req := &network.InvocationRequest{
		SourceAccount:     a.cfg.Client.Wallet,
		ContractID:        args[0],
		Method:            args[1],
		Args:              callArgs,
		Network:           a.cfg.Client.Network,
		RPCEndpoint:       opts.rpcURL,
		NetworkPassphrase: opts.passphrase,
		TimeoutSeconds:    opts.timeoutSeconds,
	}

	orchCfg, err := a.cfg.OrchestratorConfig()
	if err != nil {
		return err
	}
	agent, err := a.newAgent()
	if err != nil {
		return err
	}
	backend, err := a.openHistory()
	if err != nil {
		return err
	}
	defer backend.close()

	orch := lifecycle.New(orchCfg, lifecycle.SorobanDialer(newHTTPClient(soroban.DefaultHTTPTimeout)), agent, backend.writer, a.metrics)
	orch.SetLogger(a.logger)

	a.out.Debug("invoking %s.%s on %s", req.ContractID, req.Method, req.Network)
	result, err := orch.Execute(ctx, req, lifecycle.ExecuteOptions{Metadata: metadata})
	if err != nil {
		return err
	}

	res := invokeOutput{Result: result}
	if !a.out.IsJSONMode() {
		printResult(a.out, result)
	}

	if opts.wait {
		if result.RecordID == "" {
			a.out.Warn("transaction history is unavailable; cannot wait for confirmation")
		} else {
			tracked, err := a.waitForConfirmation(cmd, backend, result.RecordID)
			if err != nil {
				return err
			}
			res.Tracked = tracked
		}
	}

	if a.out.IsJSONMode() {
		return a.out.JSON(res)
	}
	return nil
}

// waitForConfirmation polls the record until it resolves, showing a spinner.
func (a *app) waitForConfirmation(cmd *cobra.Command, backend *historyBackend, recordID string) (*lifecycle.TrackedStatus, error) {
	spinner := output.NewStatusSpinner(a.out)
	spinner.Start("waiting for ledger confirmation...")
	tracked, err := a.newTracker(backend).PollUntilTerminal(cmd.Context(), recordID, a.cfg.PollOptions())
	spinner.Stop()
	if err != nil {
		return tracked, err
	}
	if !a.out.IsJSONMode() {
		printTracked(a.out, tracked)
	}
	return tracked, nil
}

func printResult(out *output.Logger, r *lifecycle.Result) {
	if r.SubmissionStatus == "ERROR" {
		out.Warn("transaction was rejected by the network")
	} else {
		out.Success("transaction submitted")
	}
	if r.RecordID != "" {
		out.Field("Record", r.RecordID)
	}
	out.Field("Transaction", r.TransactionID)
	out.Field("Network", r.Network)
	out.Field("Status", r.SubmissionStatus)
	out.Field("Fee", r.FeeUnits)
	if r.CostEstimate != nil {
		out.Field("Estimate", fmt.Sprintf("%d (%s)", r.CostEstimate.FeeUnits, r.CostEstimate.Provenance))
	}
	if r.RejectionEnvelope != "" {
		out.Field("Rejection", r.RejectionEnvelope)
	}
}

func printTracked(out *output.Logger, s *lifecycle.TrackedStatus) {
	if s == nil {
		return
	}
	if s.Terminal() {
		out.Success("on-chain status: %s", s.OnchainStatus)
	} else {
		out.Warn("still %s after polling; check again later with `rentflow status`", s.OnchainStatus)
	}
	out.Field("Status", s.Status)
	if s.TransactionID != "" {
		out.Field("Transaction", output.ShortHash(s.TransactionID))
	}
	if s.Ledger > 0 {
		out.Field("Ledger", s.Ledger)
	}
}

// parseInvocationArgs decodes each CLI argument as JSON, falling back to a plain string.
func parseInvocationArgs(raw []string) ([]any, error) {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		var v any
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil || dec.More() {
			args = append(args, s)
			continue
		}
		args = append(args, v)
	}
	return args, nil
}

// parseMetadata validates the --metadata flag as a JSON object.
func parseMetadata(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("--metadata must be a JSON object: %w", err)
	}
	return json.RawMessage(s), nil
}
