package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.String("product", "", "product id (required)")
	desiredStock := flag.Int64("stock", 100, "desired total stock")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for sync run endpoint")

	// 锁竞争测试参数：N 个并发对同一商品触发对账，观察锁拒绝与终态分布
	total := flag.Int("n", 20, "total reconcile submissions")
	concurrency := flag.Int("c", 10, "max concurrency")
	poll := flag.Bool("poll", true, "poll async results after submit")
	flag.Parse()

	if *productID == "" {
		panic("-product is required")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	// 1) 同步基线：单次 run，确认链路畅通
	fmt.Printf("sync baseline: product=%s desired_stock=%d\n", *productID, *desiredStock)
	base := runOnce(client, *baseURL+"/api/reconcile/run", *productID, *desiredStock, *adminToken)
	fmt.Printf("  status=%d err=%v body=%s\n", base.Status, base.Err, base.Body)

	// 2) 并发提交：同一商品的对账相互竞争每商品互斥锁
	fmt.Printf("start contention test: product=%s n=%d concurrency=%d\n", *productID, *total, *concurrency)
	results, requestIDs := runSubmits(client, *baseURL, *productID, *desiredStock, *total, *concurrency)
	printSummary("submit", results)

	if *poll {
		// 等 Relay + Consumer 消化完再查终态
		time.Sleep(3 * time.Second)
		statuses := map[string]int{}
		for _, id := range requestIDs {
			if id == "" {
				continue
			}
			statuses[fetchStatus(client, *baseURL, id)]++
		}
		fmt.Println("final pass statuses:", statuses)
	}
}

func runSubmits(client *http.Client, baseURL, productID string, desiredStock int64, total, concurrency int) ([]Result, []string) {
	type Req struct {
		ProductID    string `json:"product_id"`
		DesiredStock int64  `json:"desired_stock"`
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)
	requestIDs := make([]string, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := Req{ProductID: productID, DesiredStock: desiredStock}
			res := doJSON(client, http.MethodPost, baseURL+"/api/reconcile", req, nil)
			results[idx] = res
			requestIDs[idx] = extractRequestID(res.Body)
		}(i)
	}

	wg.Wait()
	return results, requestIDs
}

func runOnce(client *http.Client, url, productID string, desiredStock int64, adminToken string) Result {
	req := map[string]any{"product_id": productID, "desired_stock": desiredStock}
	return doJSON(client, http.MethodPost, url, req, map[string]string{"X-Admin-Token": adminToken})
}

func fetchStatus(client *http.Client, baseURL, requestID string) string {
	res := doJSON(client, http.MethodGet, baseURL+"/api/reconcile/result/"+requestID, nil, nil)
	if res.Err != nil {
		return "error"
	}
	var payload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(res.Body), &payload); err != nil || payload.Data.Status == "" {
		return "unknown"
	}
	return payload.Data.Status
}

func extractRequestID(body string) string {
	var payload struct {
		Data struct {
			RequestID string `json:"request_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return ""
	}
	return payload.Data.RequestID
}

func doJSON(client *http.Client, method, url string, body any, headers map[string]string) Result {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Result{Err: err}
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return Result{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(raw)}
}

func printSummary(name string, results []Result) {
	counts := map[int]int{}
	errs := 0
	for _, r := range results {
		if r.Err != nil {
			errs++
			continue
		}
		counts[r.Status]++
	}
	fmt.Printf("[%s] status counts=%v transport errors=%d\n", name, counts, errs)
}
