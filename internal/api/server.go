package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mindswap/internal/model"
)

// Service is the engine surface exposed over HTTP.
type Service interface {
	Pools() []model.Pool
	Balances() map[string]model.TokenBalance
	Tokens() []model.TokenInfo
	LastPrice() (model.MarketPrice, bool)
	SelectToken(coinType string) (model.TokenInfo, error)
	MaxAmount(token model.TokenInfo) string
	Quote(ctx context.Context, intent model.SwapIntent) (model.Quote, error)
	ExecuteSwap(ctx context.Context, intent model.SwapIntent) (model.SwapResult, error)
}

// SwapHistory lists recorded swaps, newest first.
type SwapHistory interface {
	RecentSwaps(ctx context.Context, limit int) ([]model.SwapRecord, error)
}

// PriceReader returns the last published price of a pool.
type PriceReader interface {
	GetPrice(ctx context.Context, poolID string) (model.MarketPrice, error)
}

// Option configures optional collaborators of a Server.
type Option func(*Server)

// WithHistory serves GET /swaps from h.
func WithHistory(h SwapHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithPriceReader lets GET /price?pool= fall back to published prices.
func WithPriceReader(p PriceReader) Option {
	return func(s *Server) { s.prices = p }
}

const defaultSwapsLimit = 50

// APIRespond is the envelope of every response.
type APIRespond struct {
	Result interface{} `json:"result"`
	Error  *string     `json:"error"`
}

type swapRequest struct {
	From     string   `json:"from" binding:"required"`
	To       string   `json:"to" binding:"required"`
	Amount   string   `json:"amount" binding:"required"`
	Slippage *float64 `json:"slippage"`
}

type quoteResult struct {
	model.Quote
	Formatted string `json:"formatted_output"`
}

// Server serves the engine over gin.
type Server struct {
	svc             Service
	gatherer        prometheus.Gatherer
	defaultSlippage float64
	history         SwapHistory
	prices          PriceReader
	logger          *zap.Logger
	router          *gin.Engine
}

func NewServer(svc Service, gatherer prometheus.Gatherer, defaultSlippage float64, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultSlippage == 0 {
		defaultSlippage = model.DefaultSlippage
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		svc:             svc,
		gatherer:        gatherer,
		defaultSlippage: defaultSlippage,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/health", s.health)
	r.GET("/pools", s.pools)
	r.GET("/tokens", s.tokens)
	r.GET("/balances", s.balances)
	r.GET("/price", s.price)
	r.GET("/quote", s.quote)
	r.POST("/swap", s.swap)
	r.GET("/swaps", s.swaps)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, APIRespond{Result: gin.H{
		"status": "ok",
		"pools":  len(s.svc.Pools()),
	}})
}

func (s *Server) pools(c *gin.Context) {
	c.JSON(http.StatusOK, APIRespond{Result: s.svc.Pools()})
}

func (s *Server) tokens(c *gin.Context) {
	c.JSON(http.StatusOK, APIRespond{Result: s.svc.Tokens()})
}

func (s *Server) balances(c *gin.Context) {
	c.JSON(http.StatusOK, APIRespond{Result: s.svc.Balances()})
}

// price serves the last quoted price. With ?pool= it answers for that pool,
// reading published prices when the last quote was for another pool.
func (s *Server) price(c *gin.Context) {
	poolID := c.Query("pool")
	if poolID != "" {
		normalized, err := model.NormalizeAddress(poolID)
		if err != nil {
			s.fail(c, &model.ValidationError{Field: "pool", Reason: err.Error()})
			return
		}
		poolID = normalized
	}

	if p, ok := s.svc.LastPrice(); ok && (poolID == "" || p.PoolKey == poolID) {
		c.JSON(http.StatusOK, APIRespond{Result: p})
		return
	}
	if poolID != "" && s.prices != nil {
		p, err := s.prices.GetPrice(c.Request.Context(), poolID)
		if err == nil {
			c.JSON(http.StatusOK, APIRespond{Result: p})
			return
		}
		s.logger.Debug("published price unavailable", zap.String("pool", poolID), zap.Error(err))
	}
	msg := "no price quoted yet"
	c.JSON(http.StatusNotFound, APIRespond{Error: &msg})
}

func (s *Server) swaps(c *gin.Context) {
	if s.history == nil {
		msg := "swap history not configured"
		c.JSON(http.StatusNotFound, APIRespond{Error: &msg})
		return
	}
	limit := defaultSwapsLimit
	if text := c.Query("limit"); text != "" {
		v, err := strconv.Atoi(text)
		if err != nil || v <= 0 {
			s.fail(c, &model.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = v
	}
	recs, err := s.history.RecentSwaps(c.Request.Context(), limit)
	if err != nil {
		s.logger.Warn("read swap history", zap.Error(err))
		msg := "swap history unavailable"
		c.JSON(http.StatusInternalServerError, APIRespond{Error: &msg})
		return
	}
	if recs == nil {
		recs = []model.SwapRecord{}
	}
	c.JSON(http.StatusOK, APIRespond{Result: recs})
}

func (s *Server) quote(c *gin.Context) {
	slippage := s.defaultSlippage
	if text := c.Query("slippage"); text != "" {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			s.fail(c, &model.ValidationError{Field: "slippage", Reason: err.Error()})
			return
		}
		slippage = v
	}

	intent, err := s.intent(c.Query("from"), c.Query("to"), c.Query("amount"), slippage)
	if err != nil {
		s.fail(c, err)
		return
	}
	q, err := s.svc.Quote(c.Request.Context(), intent)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIRespond{Result: quoteResult{Quote: q, Formatted: q.FormattedOutput()}})
}

func (s *Server) swap(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &model.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	slippage := s.defaultSlippage
	if req.Slippage != nil {
		slippage = *req.Slippage
	}

	intent, err := s.intent(req.From, req.To, req.Amount, slippage)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.ExecuteSwap(c.Request.Context(), intent)
	if err != nil {
		msg := res.Message
		c.JSON(statusFor(err), APIRespond{Result: res, Error: &msg})
		return
	}
	c.JSON(http.StatusOK, APIRespond{Result: res})
}

// intent resolves token selections and validates the request. "max" swaps the
// whole tracked balance of the input token.
func (s *Server) intent(from, to, amountText string, slippage float64) (model.SwapIntent, error) {
	fromTok, err := s.svc.SelectToken(from)
	if err != nil {
		return model.SwapIntent{}, err
	}
	toTok, err := s.svc.SelectToken(to)
	if err != nil {
		return model.SwapIntent{}, err
	}
	if amountText == "max" {
		amountText = s.svc.MaxAmount(fromTok)
	}
	return model.NewSwapIntent(fromTok, toTok, amountText, slippage)
}

func (s *Server) fail(c *gin.Context, err error) {
	msg := model.StatusMessage(err)
	c.JSON(statusFor(err), APIRespond{Error: &msg})
}

func statusFor(err error) int {
	var (
		valErr    *model.ValidationError
		liqErr    *model.NoLiquidityError
		fetchErr  *model.FetchError
		submitErr *model.SubmissionError
	)
	switch {
	case errors.Is(err, model.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &liqErr):
		return http.StatusNotFound
	case errors.As(err, &fetchErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &submitErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
