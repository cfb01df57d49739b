package metadata

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mliell/crowdmint/internal/logger"
)

const (
	DefaultTitle            = "Untitled Campaign"
	DefaultShortDescription = "No description available"
	DefaultIPFSGateway      = "https://ipfs.io/ipfs/"

	maxDocumentBytes = 1 << 20
)

var (
	ErrUnsupportedPointer = errors.New("unsupported metadata pointer")
	ErrEmptyPayload       = errors.New("data uri has no payload")
)

// Metadata 活动的链下描述信息
type Metadata struct {
	Title            string
	ShortDescription string
	LongDescription  *string
	ImageURL         *string
	Category         *string
}

// Defaults 解析失败时的默认元数据
func Defaults() Metadata {
	return Metadata{
		Title:            DefaultTitle,
		ShortDescription: DefaultShortDescription,
	}
}

// Resolver 元数据解析器
type Resolver struct {
	client  *http.Client
	gateway string
}

// NewResolver 创建解析器；gateway 为空时使用公共 IPFS 网关
func NewResolver(gateway string, timeout time.Duration) *Resolver {
	if gateway == "" {
		gateway = DefaultIPFSGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &Resolver{
		client:  &http.Client{Timeout: timeout},
		gateway: gateway,
	}
}

// Resolve 解析元数据指针，任何失败都回退到默认值
func (r *Resolver) Resolve(ctx context.Context, uri string) Metadata {
	md, err := r.ResolveE(ctx, uri)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedPointer) {
			logger.Warn("Error fetching metadata (%s): %v", Classify(uri), err)
		}
		return Defaults()
	}
	return md
}

// ResolveE 解析元数据指针并返回错误
func (r *Resolver) ResolveE(ctx context.Context, uri string) (Metadata, error) {
	switch Classify(uri) {
	case KindDataURI:
		return r.resolveDataURI(uri)
	case KindIPFS:
		cid := strings.TrimPrefix(uri, "ipfs://")
		return r.resolveHTTP(ctx, r.gateway+cid)
	case KindHTTP:
		return r.resolveHTTP(ctx, uri)
	case KindInlineJSON:
		return decode([]byte(uri))
	default:
		return Metadata{}, ErrUnsupportedPointer
	}
}

// resolveDataURI 解码 base64 编码的 JSON
func (r *Resolver) resolveDataURI(uri string) (Metadata, error) {
	_, payload, found := strings.Cut(uri, ",")
	if !found || payload == "" {
		return Metadata{}, ErrEmptyPayload
	}
	if i := strings.Index(payload, ","); i >= 0 {
		payload = payload[:i]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return Metadata{}, fmt.Errorf("decode base64: %w", err)
		}
	}
	return decode(raw)
}

// resolveHTTP 通过 HTTP 获取 JSON 文档
func (r *Resolver) resolveHTTP(ctx context.Context, url string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Metadata{}, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("read %s: %w", url, err)
	}
	return decode(body)
}

// decode 解析 JSON 文档；合法但非对象的 JSON 得到默认值
func decode(data []byte) (Metadata, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata json: %w", err)
	}

	md := Defaults()
	if _, ok := doc.(map[string]interface{}); !ok {
		return md, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata json: %w", err)
	}

	var title, short string
	if json.Unmarshal(fields["title"], &title) == nil && title != "" {
		md.Title = title
	}
	if json.Unmarshal(fields["shortDescription"], &short) == nil && short != "" {
		md.ShortDescription = short
	}
	md.LongDescription = passThrough(fields["longDescription"])
	md.ImageURL = passThrough(fields["imageUrl"])
	md.Category = passThrough(fields["category"])
	return md, nil
}

// passThrough 字符串取其内容，其他 JSON 值保留紧凑的原文，缺失或 null 为 nil
func passThrough(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	s = buf.String()
	return &s
}
