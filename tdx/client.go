package tdx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aistock/tdxdata/btime"
	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

/*
Client 通达信行情HTTP客户端。

增量接口与全量接口使用不同超时；连续失败达到阈值后熔断，
熔断期间直接返回SourceDown而不发请求。
*/
type Client struct {
	base    string
	client  *http.Client
	bulk    *http.Client
	breaker *gobreaker.CircuitBreaker
	rateMS  int64
	lastReq int64
	lock    deadlock.Mutex
}

// rsp 统一响应外壳，code非0表示上游业务错误
type rsp struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewClient() *Client {
	cfg := config.Tdx
	if cfg == nil {
		cfg = &config.TdxConfig{}
	}
	base := cfg.ApiBase
	if base == "" {
		base = "http://127.0.0.1:7709"
	}
	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = 10
	}
	bulkTimeout := cfg.BulkTimeout
	if bulkTimeout <= 0 {
		bulkTimeout = 30
	}
	breakFails := cfg.BreakFails
	if breakFails <= 0 {
		breakFails = 5
	}
	breakSecs := cfg.BreakSecs
	if breakSecs <= 0 {
		breakSecs = 60
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tdx",
		MaxRequests: 1,
		Timeout:     time.Duration(breakSecs) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(breakFails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("tdx breaker state change", zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// 业务错误(坏响应/参数)不计入熔断，只有网络类故障才算失败
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if e, ok := err.(*errs.Error); ok {
				return !core.IsTransient(e.Code)
			}
			return false
		},
	})
	return &Client{
		base:    base,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
		bulk:    &http.Client{Timeout: time.Duration(bulkTimeout) * time.Second},
		breaker: breaker,
		rateMS:  int64(cfg.RateMS),
	}
}

// waitRate 保证两次请求的最小间隔
func (c *Client) waitRate() {
	if c.rateMS <= 0 {
		return
	}
	c.lock.Lock()
	wait := c.lastReq + c.rateMS - btime.TimeMS()
	if wait > 0 {
		c.lock.Unlock()
		time.Sleep(time.Duration(wait) * time.Millisecond)
		c.lock.Lock()
	}
	c.lastReq = btime.TimeMS()
	c.lock.Unlock()
}

/*
Get 请求增量接口并将data节解码到out。out为nil时丢弃data。
*/
func (c *Client) Get(ctx context.Context, path string, params map[string]string, out interface{}) *errs.Error {
	return c.doGet(ctx, c.client, path, params, out)
}

// GetBulk 全量接口，超时更长
func (c *Client) GetBulk(ctx context.Context, path string, params map[string]string, out interface{}) *errs.Error {
	return c.doGet(ctx, c.bulk, path, params, out)
}

func (c *Client) doGet(ctx context.Context, client *http.Client, path string, params map[string]string, out interface{}) *errs.Error {
	c.waitRate()
	reqURL := c.base + path
	if len(params) > 0 {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		reqURL += "?" + query.Encode()
	}
	body, err_ := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, errs.New(core.ErrRunTime, err)
		}
		return doRequest(client, req)
	})
	if err_ != nil {
		if err2, ok := err_.(*errs.Error); ok {
			return err2
		}
		if err_ == gobreaker.ErrOpenState || err_ == gobreaker.ErrTooManyRequests {
			return errs.NewMsg(core.ErrSourceDown, "tdx breaker open: %s", path)
		}
		return errs.New(core.ErrNetUnknown, err_)
	}
	data := body.([]byte)
	var shell rsp
	if err := json.Unmarshal(data, &shell); err != nil {
		return errs.NewFull(core.ErrBadSourceResp, err, "bad json from %s", path)
	}
	if shell.Code != 0 {
		return errs.NewMsg(core.ErrBadSourceResp, "tdx %s code=%d msg=%s", path, shell.Code, shell.Message)
	}
	if out == nil || len(shell.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(shell.Data, out); err != nil {
		return errs.NewFull(core.ErrBadSourceResp, err, "bad data from %s", path)
	}
	return nil
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	rsp, err_ := client.Do(req)
	if err_ != nil {
		return nil, classifyNetErr(req.Context(), err_)
	}
	defer rsp.Body.Close()
	data, err_ := io.ReadAll(rsp.Body)
	if err_ != nil {
		return nil, errs.New(core.ErrNetReadFail, err_)
	}
	log.Debug("tdx rsp", zap.String("url", req.URL.Path), zap.Int("status", rsp.StatusCode),
		zap.Int("len", len(data)))
	if rsp.StatusCode >= 500 {
		return nil, errs.NewMsg(core.ErrSourceDown, "tdx %s status=%d", req.URL.Path, rsp.StatusCode)
	}
	if rsp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.NewMsg(core.ErrRateLimit, "tdx %s throttled", req.URL.Path)
	}
	if rsp.StatusCode >= 400 {
		return nil, errs.NewMsg(core.ErrBadSourceResp, "%s status=%d %s",
			req.URL.Path, rsp.StatusCode, shorten(data, 300))
	}
	return data, nil
}

// classifyNetErr 区分可重试的网络错误与取消
func classifyNetErr(ctx context.Context, err error) *errs.Error {
	if ctx.Err() != nil {
		return errs.New(core.ErrCancelled, ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.New(core.ErrNetTimeout, err)
		}
		return errs.New(core.ErrNetConnect, err)
	}
	return errs.New(core.ErrNetUnknown, err)
}

func shorten(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
