// Package publisher delivers status documents to the CI dashboard.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrUnexpectedStatus 狀態端點回應非 2xx
	ErrUnexpectedStatus = errors.New("publisher: unexpected response status")
	// ErrUnknownMode 未知的發佈模式
	ErrUnknownMode = errors.New("publisher: unknown mode")
)

// Publisher sends one status document.
type Publisher interface {
	Publish(ctx context.Context, status types.StatusUpdate) error
}

// Func adapts a function to Publisher.
type Func func(ctx context.Context, status types.StatusUpdate) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, status types.StatusUpdate) error { return f(ctx, status) }

// ============================================================================
// HTTP 發佈器
// ============================================================================

// Options configures an HTTPPublisher.
type Options struct {
	Mode       string // config.ModePut 或 config.ModeControl
	URL        string // put 模式的端點，{uid} 會被替換
	ControlURL string
	UID        string
	Token      string
	Timeout    time.Duration
	DumpFile   string // 非空時每次發佈都寫入此檔
	Client     *http.Client
	Logger     zerolog.Logger
}

// HTTPPublisher PUTs to the per-run status URL or POSTs a prstatus command
// to the control endpoint.
type HTTPPublisher struct {
	opts   Options
	client *http.Client
	dump   *snapshot.Manager
	log    zerolog.Logger
}

// putBody 是 put 模式的請求內容
type putBody struct {
	UID    string             `json:"uid"`
	Status types.StatusUpdate `json:"status"`
}

// controlBody 是 control 模式的請求內容
type controlBody struct {
	Cmd    string             `json:"cmd"`
	PRNum  string             `json:"prnum"`
	Status types.StatusUpdate `json:"status"`
}

// New builds an HTTPPublisher.
func New(opts Options) (*HTTPPublisher, error) {
	switch opts.Mode {
	case "", config.ModePut:
		opts.Mode = config.ModePut
		if opts.URL == "" {
			return nil, errors.New("publisher: status url is required")
		}
	case config.ModeControl:
		if opts.ControlURL == "" {
			return nil, errors.New("publisher: control url is required")
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	p := &HTTPPublisher{
		opts:   opts,
		client: client,
		log:    opts.Logger.With().Str("component", "publisher").Str("mode", opts.Mode).Logger(),
	}
	if opts.DumpFile != "" {
		p.dump = snapshot.NewManager(opts.DumpFile)
	}
	return p, nil
}

// FromConfig builds a publisher for run uid authenticated by token.
func FromConfig(cfg config.StatusConfig, uid, token string, logger zerolog.Logger) (*HTTPPublisher, error) {
	return New(Options{
		Mode:       cfg.Mode,
		URL:        cfg.URL,
		ControlURL: cfg.ControlURL,
		UID:        uid,
		Token:      token,
		Timeout:    cfg.Timeout,
		DumpFile:   cfg.DumpFile,
		Logger:     logger,
	})
}

// Endpoint returns the resolved target URL.
func (p *HTTPPublisher) Endpoint() string {
	if p.opts.Mode == config.ModeControl {
		return p.opts.ControlURL
	}
	return strings.ReplaceAll(p.opts.URL, "{uid}", url.PathEscape(p.opts.UID))
}

// Publish dumps the document locally, then delivers it.
//
// A failed dump is logged and does not prevent delivery.
func (p *HTTPPublisher) Publish(ctx context.Context, status types.StatusUpdate) error {
	if p.dump != nil {
		if err := p.dump.Write(status); err != nil {
			p.log.Warn().Err(err).Str("path", p.dump.GetPath()).Msg("failed to dump status")
		}
	}

	var (
		method = http.MethodPut
		body   any
	)
	if p.opts.Mode == config.ModeControl {
		method = http.MethodPost
		body = controlBody{Cmd: "prstatus", PRNum: p.opts.UID, Status: status}
	} else {
		body = putBody{UID: p.opts.UID, Status: status}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("publisher: encode status: %w", err)
	}

	endpoint := p.Endpoint()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("publisher: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.opts.Token != "" {
		req.Header.Set("Authorization", p.opts.Token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("publisher: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: %s", ErrUnexpectedStatus, method, endpoint, resp.Status)
	}
	p.log.Debug().Str("endpoint", endpoint).Int("code", resp.StatusCode).Msg("status published")
	return nil
}
