// internal/historyapi/server.go
package historyapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/metrics"
	"github.com/altuslabsxyz/rentflow/pkg/network"
)

// Route paths.
const (
	transactionsPath      = "/transactions"
	transactionPath       = "/transactions/:id"
	transactionStatusPath = "/transactions/:id/status"
	metricsPath           = "/metrics"
	healthPath            = "/healthz"
)

// Config holds server configuration.
type Config struct {
	// ListenAddr is the TCP address to listen on.
	ListenAddr string

	// Store persists history records.
	Store history.Store

	// Queriers resolve on-chain truth, keyed by network name.
	// A record whose network has no querier is reported as stored.
	Queriers map[string]network.TxQuerier

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger is optional; slog.Default() is used when nil.
	Logger *slog.Logger
}

// Server is the history store HTTP API.
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// CreateResponse is the body of POST /transactions.
type CreateResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type createRequest struct {
	ContractID       string                `json:"contractId" binding:"required"`
	Method           string                `json:"method" binding:"required"`
	WalletAddress    string                `json:"walletAddress" binding:"required"`
	Network          string                `json:"network" binding:"required"`
	Status           string                `json:"status"`
	FeeUnits         int64                 `json:"feeUnits"`
	CostEstimate     *network.CostEstimate `json:"costEstimate"`
	UnsignedEnvelope string                `json:"unsignedEnvelope"`
	Metadata         json.RawMessage       `json:"metadata"`
}

type patchRequest struct {
	ID string `json:"id" binding:"required"`
	history.Patch
}

// New creates a new server.
func New(config Config) (*Server, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		logger: logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe())
	engine.POST(transactionsPath, s.createTransaction)
	engine.PATCH(transactionsPath, s.updateTransaction)
	engine.GET(transactionsPath, s.listTransactions)
	engine.GET(transactionPath, s.getTransaction)
	engine.GET(transactionStatusPath, s.getTransactionStatus)
	engine.GET(metricsPath, gin.WrapH(config.Metrics.Handler()))
	engine.GET(healthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine = engine

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("history api started", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
			return err
		}
		return nil
	}

	return s.Shutdown()
}

// Shutdown stops the HTTP server and closes the store.
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.config.Store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// observe logs and counts each request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		s.config.Metrics.ObserveRequest(route, strconv.Itoa(code))
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", code,
			"duration", time.Since(start))
	}
}

func (s *Server) createTransaction(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	status := history.StatusPendingSignature
	if req.Status != "" {
		status = history.Status(req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown status %q", req.Status)})
			return
		}
	}

	r := &history.Record{
		ContractID:       req.ContractID,
		Method:           req.Method,
		WalletAddress:    req.WalletAddress,
		Network:          req.Network,
		Status:           status,
		FeeUnits:         req.FeeUnits,
		CostEstimate:     req.CostEstimate,
		UnsignedEnvelope: req.UnsignedEnvelope,
	}
	metadata, err := validateMetadata(req.Metadata)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	r.Metadata = metadata

	if err := s.config.Store.Create(c.Request.Context(), r); err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateResponse{ID: r.ID})
}

func (s *Server) updateTransaction(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Patch.Status != nil && !req.Patch.Status.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown status %q", *req.Patch.Status)})
		return
	}
	if req.Patch.OnchainStatus != nil && !req.Patch.OnchainStatus.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown onchain status %q", *req.Patch.OnchainStatus)})
		return
	}

	r, err := s.config.Store.Update(c.Request.Context(), req.ID, &req.Patch)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) getTransaction(c *gin.Context) {
	r, err := s.config.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) listTransactions(c *gin.Context) {
	opts := history.ListOptions{
		ContractID:    c.Query("contractId"),
		WalletAddress: c.Query("walletAddress"),
		Status:        history.Status(c.Query("status")),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		opts.Limit = n
	}

	records, err := s.config.Store.List(c.Request.Context(), opts)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) getTransactionStatus(c *gin.Context) {
	resp, err := s.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status reports the lifecycle and on-chain status of a record, consulting the ledger
// when the record has been submitted but not yet resolved.
func (s *Server) Status(ctx context.Context, id string) (*history.StatusReport, error) {
	r, err := s.config.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r = s.resolveOnchain(ctx, r)
	return &history.StatusReport{
		Status:        string(r.Status),
		TxHash:        r.TransactionID,
		OnchainStatus: string(r.DeriveOnchainStatus()),
		Ledger:        r.Ledger,
	}, nil
}

// resolveOnchain asks the ledger for the outcome of a submitted, unresolved record and
// persists a terminal answer. Any failure leaves the stored record as the answer.
func (s *Server) resolveOnchain(ctx context.Context, r *history.Record) *history.Record {
	if r.TransactionID == "" || r.Status.Terminal() || r.OnchainStatus.Terminal() {
		return r
	}
	querier, ok := s.config.Queriers[r.Network]
	if !ok {
		return r
	}

	tx, err := querier.GetTransaction(ctx, r.TransactionID)
	if err != nil {
		s.logger.Warn("failed to query ledger", "id", r.ID, "tx", r.TransactionID, "error", err)
		return r
	}
	if !tx.Found {
		return r
	}

	status, onchain := history.StatusFailed, history.OnchainFailed
	if tx.Successful {
		status, onchain = history.StatusSuccess, history.OnchainSuccess
	}
	ledger := tx.LedgerSequence
	patch := &history.Patch{Status: &status, OnchainStatus: &onchain, Ledger: &ledger}

	updated, err := s.config.Store.Update(ctx, r.ID, patch)
	if err != nil {
		s.logger.Warn("failed to persist onchain status", "id", r.ID, "error", err)
		s.config.Metrics.PersistenceFailure("resolve")
		return r
	}
	s.logger.Info("resolved onchain status", "id", r.ID, "status", onchain, "ledger", ledger)
	return updated
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case history.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case history.IsAlreadyExists(err), history.IsInvalidTransition(err):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("store error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
