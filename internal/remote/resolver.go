package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// ErrUnexpectedResponse 表示 latest 地址没有返回预期的重定向。
var ErrUnexpectedResponse = errors.New("unexpected response")

// UnexpectedResponseError 记录导致解析失败的响应。
type UnexpectedResponseError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("remote: unexpected response from %s (status %d): %s", e.URL, e.StatusCode, e.Reason)
}

// Is 使 errors.Is(err, ErrUnexpectedResponse) 成立。
func (e *UnexpectedResponseError) Is(target error) bool {
	return target == ErrUnexpectedResponse
}

// TagResolver 定义最新发行标识的解析能力。
type TagResolver interface {
	LatestTag(ctx context.Context) (string, error)
}

// HTTPClient 描述最小化的 HTTP 客户端接口，方便测试时替换。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option 用于配置 Resolver。
type Option func(*Resolver)

// WithHTTPClient 设置 HTTP 客户端。*http.Client 会被复制并关闭重定向跟随。
func WithHTTPClient(h HTTPClient) Option {
	return func(r *Resolver) {
		if h == nil {
			return
		}
		if hc, ok := h.(*http.Client); ok {
			h = noRedirect(hc)
		}
		r.httpClient = h
	}
}

// WithLogger 设置日志输出。
func WithLogger(log *logrus.Entry) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// Resolver 通过 latest 发行页的重定向解析最新版本标识。
type Resolver struct {
	latestURL  string
	httpClient HTTPClient
	log        *logrus.Entry
}

// NewResolver 创建解析器，latestURL 形如 https://github.com/<owner>/<repo>/releases/latest。
func NewResolver(latestURL string, opts ...Option) *Resolver {
	r := &Resolver{
		latestURL: latestURL,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.httpClient == nil {
		r.httpClient = noRedirect(&http.Client{Timeout: defaultTimeout})
	}
	return r
}

// LatestTag 请求 latest 地址但不跟随重定向，返回 Location 的最后一段。
func (r *Resolver) LatestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.latestURL, nil)
	if err != nil {
		return "", fmt.Errorf("remote: build request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote: request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", &UnexpectedResponseError{URL: r.latestURL, StatusCode: resp.StatusCode, Reason: "expected a redirect"}
	}

	location := resp.Header.Get("Location")
	r.log.WithField("location", location).Debug("latest release redirect")

	tag, err := TagFromLocation(location)
	if err != nil {
		return "", &UnexpectedResponseError{URL: r.latestURL, StatusCode: resp.StatusCode, Reason: err.Error()}
	}
	return tag, nil
}

// TagFromLocation 从重定向地址中取出发行标识，忽略查询串与片段。
func TagFromLocation(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", errors.New("missing Location header")
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", location, err)
	}

	segments := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	tag := segments[len(segments)-1]
	if tag == "" || tag == "latest" {
		return "", fmt.Errorf("no release tag in Location %q", location)
	}
	return tag, nil
}

func noRedirect(c *http.Client) *http.Client {
	clone := *c
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &clone
}
