// Package record 封装远端 Product/SKU 记录服务的 CRUD 访问。
// 记录服务才是库存与价格的权威存储，本服务只做读-算-写的对账。
package record

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stock_sync/internal/model"
)

// ErrNotFound 表示目标记录在远端不存在。
var ErrNotFound = errors.New("record not found")

// Client 抽象记录服务操作，核心引擎只依赖该接口。
type Client interface {
	// ListSKUsByProduct 拉取某商品的全部 SKU。limit 必须 ≥ 该商品的 SKU 总数，
	// 引擎假定返回结果是完整快照。无 SKU 时返回空切片而非错误。
	ListSKUsByProduct(ctx context.Context, productID string, limit int) ([]model.SKU, error)
	GetProduct(ctx context.Context, productID string) (model.Product, error)
	UpdateSKU(ctx context.Context, skuID string, patch model.SKUPatch) (model.SKU, error)
	UpdateProduct(ctx context.Context, productID string, patch model.ProductPatch) (model.Product, error)
}

// HTTPClient 通过 JSON REST 访问记录服务。
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func NewHTTPClient(baseURL, apiKey, apiKeyHeader string, timeout time.Duration) *HTTPClient {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &HTTPClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: timeout},
	}
}

// envelope 记录服务的成功响应统一包一层 {"data": ...}。
type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("record api %s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("record api %s %s: status %d: %s", method, path, resp.StatusCode, truncate(raw, 200))
	}
	if out == nil {
		return nil
	}

	// 成功响应可能带 {"data": ...} 信封，也可能直接是载荷，两种都兼容。
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return json.Unmarshal(raw, out)
}

func (c *HTTPClient) ListSKUsByProduct(ctx context.Context, productID string, limit int) ([]model.SKU, error) {
	params := url.Values{}
	params.Set("productId", productID)
	params.Set("limit", strconv.Itoa(limit))

	var skus []model.SKU
	if err := c.do(ctx, http.MethodGet, "/skus", params, nil, &skus); err != nil {
		return nil, err
	}
	if skus == nil {
		skus = []model.SKU{}
	}
	return skus, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, productID string) (model.Product, error) {
	var p model.Product
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, nil, &p)
	return p, err
}

func (c *HTTPClient) UpdateSKU(ctx context.Context, skuID string, patch model.SKUPatch) (model.SKU, error) {
	var s model.SKU
	err := c.do(ctx, http.MethodPut, "/skus/"+url.PathEscape(skuID), nil, patch, &s)
	return s, err
}

func (c *HTTPClient) UpdateProduct(ctx context.Context, productID string, patch model.ProductPatch) (model.Product, error) {
	var p model.Product
	err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(productID), nil, patch, &p)
	return p, err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
