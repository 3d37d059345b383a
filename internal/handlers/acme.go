package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conblem/acmon/internal/acme"
	"github.com/conblem/acmon/internal/events"
	"github.com/conblem/acmon/internal/messaging"
	"github.com/danielgtaylor/huma/v2"
	"go.uber.org/zap"
)

// ACMEHandler serves the ACME directory and nonce endpoints.
type ACMEHandler struct {
	server    acme.Server
	directory []byte
	publish   messaging.Publish[events.Rejected]
	logger    *zap.Logger
}

// NewACMEHandler renders the directory for baseURL once and serves it for every
// request. Rejections by the server's rate limits are passed to publish.
func NewACMEHandler(
	server acme.Server,
	baseURL string,
	publish messaging.Publish[events.Rejected],
	logger *zap.Logger,
) (*ACMEHandler, error) {
	directory, err := GenerateDirectory(baseURL)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(directory)
	if err != nil {
		return nil, fmt.Errorf("handlers: encode directory: %w", err)
	}

	return &ACMEHandler{
		server:    server,
		directory: body,
		publish:   publish,
		logger:    logger,
	}, nil
}

// GenerateDirectory builds the directory with every resource under {baseURL}/acme.
func GenerateDirectory(baseURL string) (*Directory, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("handlers: parse base url: %w", err)
	}

	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("handlers: base url %q must be absolute", baseURL)
	}

	prefix := strings.TrimSuffix(base.String(), "/") + "/acme/"

	return &Directory{
		KeyChange:  prefix + "key_change",
		NewAccount: prefix + "new_account",
		NewNonce:   prefix + "new_nonce",
		NewOrder:   prefix + "new_order",
		RevokeCert: prefix + "revoke_cert",
	}, nil
}

func (h *ACMEHandler) GetDirectory(_ context.Context, _ *struct{}) (*DirectoryResponse, error) {
	return &DirectoryResponse{
		ContentType: "application/json",
		Body:        h.directory,
	}, nil
}

func (h *ACMEHandler) NewNonce(ctx context.Context, _ *struct{}) (*NonceResponse, error) {
	nonce, err := h.server.GetNonce(ctx)
	if err != nil {
		var limited *acme.RateLimitedError
		if errors.As(err, &limited) {
			return nil, h.rejected(ctx, PathNewNonce, limited)
		}

		h.logger.Error("failed to issue nonce", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to issue nonce")
	}

	return &NonceResponse{
		ReplayNonce:  nonce,
		CacheControl: "no-store",
	}, nil
}

// rejected publishes the rejection and builds the 429 carrying Retry-After.
func (h *ACMEHandler) rejected(ctx context.Context, path string, limited *acme.RateLimitedError) error {
	key := acme.ClientFromContext(ctx)

	h.logger.Warn("rate limit exceeded",
		zap.String("path", path),
		zap.String("scope", string(limited.Decision.Scope)),
		zap.Uint32("count", limited.Decision.Count),
		zap.Uint32("max", limited.Decision.Max),
		zap.Duration("window", limited.Decision.Window),
	)

	event := events.NewRejected(key, path, limited.Decision, time.Now())
	if err := h.publish(ctx, event); err != nil {
		h.logger.Error("failed to publish rejection", zap.String("id", event.ID), zap.Error(err))
	}

	return huma.ErrorWithHeaders(
		huma.Error429TooManyRequests(limited.Error()),
		http.Header{"Retry-After": {strconv.FormatInt(limited.Decision.RetryAfter(), 10)}},
	)
}
