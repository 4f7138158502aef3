package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"

	"subcollect/internal/shared/logger"
)

// ErrEmptyResponse 表示响应体为空或只有空白字符。很多坏代理不报错，
// 而是返回一个空白页或强制门户页，必须视为失败并重试。
var ErrEmptyResponse = errors.New("empty response body")

// StatusError 表示非 2xx 的 HTTP 状态码。
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Options 定义客户端行为。零值字段使用默认值。
type Options struct {
	UserAgent  string
	VerifySSL  bool // 默认不验证：中转代理常用自签名或域名不匹配的证书
	Retries    int
	Backoff    time.Duration // 首次重试等待，之后翻倍
	MaxBackoff time.Duration
}

// Client 是带重试的 HTTP GET 客户端。除连接复用外无状态，
// 可被验证器和竞速抓取的多个 worker 并发使用。
type Client struct {
	opts      Options
	transport *http.Transport // 直连时复用
}

// New 创建一个客户端。
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	return &Client{
		opts: opts,
		transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.VerifySSL},
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

// Get 发送 GET 请求并返回响应体。proxyURL 为空时直连。
// 传输层错误、非 2xx 状态码和空响应体都在同一个退避预算内重试，
// 预算耗尽后把最后一次错误返回给调用方。
func (c *Client) Get(ctx context.Context, rawURL string, proxyURL string, timeout time.Duration) (string, error) {
	l := logger.WithComponent("ProxyPool/Client")

	transport, err := c.transportFor(proxyURL, timeout)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt < c.opts.Retries; attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		body, err := c.doOnce(ctx, transport, rawURL, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		l.Debug().Err(err).Str("url", rawURL).Str("proxy", proxyURL).Int("attempt", attempt+1).Msg("GET attempt failed.")
	}
	return "", lastErr
}

func (c *Client) doOnce(ctx context.Context, transport *http.Transport, rawURL string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	body := string(data)
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyResponse
	}
	return body, nil
}

// sleepBackoff 在第 attempt 次重试前等待，指数退避并封顶。
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := c.opts.Backoff << (attempt - 1)
	if wait > c.opts.MaxBackoff {
		wait = c.opts.MaxBackoff
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transportFor 按代理协议构造传输层。
//   - http/https 代理走标准 ProxyURL
//   - socks5/socks5h 走 x/net 的 SOCKS5 拨号器，域名在代理端解析
//   - socks4/socks4a 走 h12.io/socks 拨号器
func (c *Client) transportFor(proxyURL string, timeout time.Duration) (*http.Transport, error) {
	if proxyURL == "" {
		return c.transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
	}

	tlsConf := &tls.Config{InsecureSkipVerify: !c.opts.VerifySSL}

	switch u.Scheme {
	case "http", "https":
		return &http.Transport{
			Proxy:               http.ProxyURL(u),
			TLSClientConfig:     tlsConf,
			TLSHandshakeTimeout: timeout / 2,
		}, nil

	case "socks5", "socks5h":
		dialer, err := xproxy.SOCKS5("tcp", u.Host, nil, &net.Dialer{Timeout: timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support context")
		}
		return &http.Transport{
			DialContext:         contextDialer.DialContext,
			TLSClientConfig:     tlsConf,
			TLSHandshakeTimeout: timeout / 2,
		}, nil

	case "socks4", "socks4a":
		dial := socks.Dial(proxyURL + "?timeout=" + timeout.String())
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dial(network, addr)
			},
			TLSClientConfig:     tlsConf,
			TLSHandshakeTimeout: timeout / 2,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
}
