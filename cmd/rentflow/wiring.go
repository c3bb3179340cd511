// cmd/rentflow/wiring.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/altuslabsxyz/rentflow/internal/config"
	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/historyapi"
	"github.com/altuslabsxyz/rentflow/internal/lifecycle"
	"github.com/altuslabsxyz/rentflow/internal/version"
	"github.com/altuslabsxyz/rentflow/internal/wallet"
	"github.com/altuslabsxyz/rentflow/pkg/network"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

// userAgentTransport stamps outbound requests with the rentflow User-Agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	return t.base.RoundTrip(req)
}

// newHTTPClient returns a client with the given timeout (0 = none).
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: userAgentTransport{base: http.DefaultTransport},
	}
}

// openStore opens the history store selected by configuration.
func openStore(cfg config.HistoryConfig) (history.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return history.NewMemoryStore(), nil
	case config.BackendBolt:
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		store, err := history.NewBoltStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect, dsn := history.DialectPostgres, cfg.DSN
		if cfg.Backend == config.BackendSQLite {
			if err := ensureParentDir(cfg.Path); err != nil {
				return nil, err
			}
			dialect, dsn = history.DialectSQLite, cfg.Path
		}
		store, err := history.OpenSQLStore(dialect, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.Backend)
	}
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// networkPresets returns every known network, with configured presets overriding built-ins.
func networkPresets(cfg *config.Config) map[string]network.Preset {
	presets := make(map[string]network.Preset)
	for _, name := range network.PresetNames() {
		p, _ := network.LookupPreset(name)
		presets[name] = p
	}
	for name, p := range cfg.Networks {
		presets[strings.ToLower(name)] = p
	}
	return presets
}

// newQueriers builds one ledger client per known network for on-chain resolution.
func newQueriers(cfg *config.Config, httpClient *http.Client) (map[string]network.TxQuerier, error) {
	presets := networkPresets(cfg)
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	queriers := make(map[string]network.TxQuerier, len(names))
	for _, name := range names {
		p := presets[name]
		client, err := soroban.NewClient(&soroban.ClientConfig{
			RPCEndpoint: p.RPCEndpoint,
			HorizonURL:  p.HorizonURL,
			HTTPClient:  httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		queriers[name] = client
	}
	return queriers, nil
}

// newAgent creates the configured signing agent.
func (a *app) newAgent() (wallet.Agent, error) {
	switch a.cfg.Signer.Agent {
	case config.AgentHTTP:
		return wallet.NewHTTPAgent(a.cfg.Signer.URL, newHTTPClient(a.cfg.Signer.Timeout))
	case config.AgentPrompt:
		return wallet.NewPromptAgent(wallet.PrompterAdapter{}, a.out.ErrWriter()), nil
	default:
		return nil, fmt.Errorf("unsupported signing agent %q", a.cfg.Signer.Agent)
	}
}

// historyReader is implemented by both history.Store and historyapi.Client.
type historyReader interface {
	Get(ctx context.Context, id string) (*history.Record, error)
	List(ctx context.Context, opts history.ListOptions) ([]*history.Record, error)
}

// historyBackend bundles the history collaborators used by client commands.
// With a history URL everything goes through the API; otherwise the local store is opened
// and status checks run in-process.
type historyBackend struct {
	writer lifecycle.HistoryWriter
	source lifecycle.StatusSource
	reader historyReader
	close  func() error
}

func (a *app) openHistory() (*historyBackend, error) {
	httpClient := newHTTPClient(historyapi.DefaultHTTPTimeout)

	if a.cfg.History.URL != "" {
		client, err := historyapi.NewClient(a.cfg.History.URL, httpClient)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("using history api", "url", a.cfg.History.URL)
		return &historyBackend{
			writer: client,
			source: client,
			reader: client,
			close:  func() error { return nil },
		}, nil
	}

	store, err := openStore(a.cfg.History)
	if err != nil {
		return nil, err
	}
	queriers, err := newQueriers(a.cfg, httpClient)
	if err != nil {
		store.Close()
		return nil, err
	}
	srv, err := historyapi.New(historyapi.Config{
		Store:    store,
		Queriers: queriers,
		Metrics:  a.metrics,
		Logger:   a.logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	a.logger.Debug("using local history store", "backend", a.cfg.History.Backend)
	return &historyBackend{
		writer: lifecycle.StoreWriter{Store: store},
		source: srv,
		reader: store,
		close:  store.Close,
	}, nil
}

// newTracker creates a tracker over the backend's status source.
func (a *app) newTracker(b *historyBackend) *lifecycle.Tracker {
	tracker := lifecycle.NewTracker(b.source, a.metrics)
	tracker.SetLogger(a.logger)
	return tracker
}
