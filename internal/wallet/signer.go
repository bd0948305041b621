package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"mindswap/internal/model"
)

const (
	signMethod = "wallet_signAndExecuteTransaction"

	// userRejectedCode is the wallet-standard code for a declined request.
	userRejectedCode = 4001

	defaultSignTimeout = 60 * time.Second
)

// Signer signs and submits a transaction request on behalf of the wallet.
type Signer interface {
	SignAndSubmit(ctx context.Context, req model.TransactionRequest) (model.SubmitResult, error)
}

type executeResponse struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RemoteSigner forwards requests to a wallet daemon over JSON-RPC.
type RemoteSigner struct {
	rpcClient *rpc.Client
	timeout   time.Duration
	logger    *zap.Logger
}

// DialRemoteSigner connects to the signer endpoint.
func DialRemoteSigner(ctx context.Context, url string, timeout time.Duration, logger *zap.Logger) (*RemoteSigner, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial signer: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultSignTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteSigner{rpcClient: rpcClient, timeout: timeout, logger: logger}, nil
}

func (s *RemoteSigner) Close() {
	if s.rpcClient != nil {
		s.rpcClient.Close()
	}
}

// SignAndSubmit makes exactly one call; it never retries.
func (s *RemoteSigner) SignAndSubmit(ctx context.Context, req model.TransactionRequest) (model.SubmitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp executeResponse
	if err := s.rpcClient.CallContext(ctx, &resp, signMethod, req); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
			return model.SubmitResult{}, &model.SubmissionError{Message: "rejected by wallet", Rejected: true, Err: err}
		}
		return model.SubmitResult{}, &model.SubmissionError{Message: "signer unavailable", Err: err}
	}

	s.logger.Info("signer response",
		zap.String("request", req.ID),
		zap.String("status", resp.Status),
		zap.String("digest", resp.Digest),
	)
	if resp.Status != "success" {
		msg := resp.Error
		if msg == "" {
			msg = "transaction status " + resp.Status
		}
		return model.SubmitResult{Digest: resp.Digest}, &model.SubmissionError{Message: msg}
	}
	return model.SubmitResult{Digest: resp.Digest}, nil
}
