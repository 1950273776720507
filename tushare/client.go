package tushare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aistock/tdxdata/config"
	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"go.uber.org/zap"
)

/*
Client tushare pro HTTP客户端。

所有接口走同一POST入口，api_name区分；token缺失时在构造阶段报错，
避免任务跑到一半才发现配置不全。
*/
type Client struct {
	base   string
	token  string
	client *http.Client
}

type reqBody struct {
	ApiName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

type rspBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Fields  []string        `json:"fields"`
		Items   [][]interface{} `json:"items"`
		HasMore bool            `json:"has_more"`
	} `json:"data"`
}

func NewClient() (*Client, *errs.Error) {
	cfg := config.Tushare
	if cfg == nil || cfg.Token == "" {
		return nil, errs.NewMsg(core.ErrBadConfig, "tushare.token is required")
	}
	base := cfg.ApiBase
	if base == "" {
		base = "https://api.tushare.pro"
	}
	return &Client{
		base:   base,
		token:  cfg.Token,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

/*
Query 调用指定接口，返回字段名到列下标的映射和行数据。
*/
func (c *Client) Query(ctx context.Context, apiName string, params map[string]interface{}, fields string) (map[string]int, [][]interface{}, *errs.Error) {
	body, err_ := json.Marshal(&reqBody{ApiName: apiName, Token: c.token, Params: params, Fields: fields})
	if err_ != nil {
		return nil, nil, errs.New(core.ErrMarshalFail, err_)
	}
	req, err_ := http.NewRequestWithContext(ctx, http.MethodPost, c.base, bytes.NewReader(body))
	if err_ != nil {
		return nil, nil, errs.New(core.ErrRunTime, err_)
	}
	req.Header.Set("Content-Type", "application/json")
	rsp, err_ := c.client.Do(req)
	if err_ != nil {
		if ctx.Err() != nil {
			return nil, nil, errs.New(core.ErrCancelled, ctx.Err())
		}
		var netErr net.Error
		if errors.As(err_, &netErr) && netErr.Timeout() {
			return nil, nil, errs.New(core.ErrNetTimeout, err_)
		}
		return nil, nil, errs.New(core.ErrNetConnect, err_)
	}
	defer rsp.Body.Close()
	data, err_ := io.ReadAll(rsp.Body)
	if err_ != nil {
		return nil, nil, errs.New(core.ErrNetReadFail, err_)
	}
	if rsp.StatusCode >= 500 {
		return nil, nil, errs.NewMsg(core.ErrSourceDown, "tushare %s status=%d", apiName, rsp.StatusCode)
	}
	if rsp.StatusCode >= 400 {
		return nil, nil, errs.NewMsg(core.ErrBadSourceResp, "tushare %s status=%d", apiName, rsp.StatusCode)
	}
	var shell rspBody
	if err := json.Unmarshal(data, &shell); err != nil {
		return nil, nil, errs.NewFull(core.ErrBadSourceResp, err, "bad json from tushare %s", apiName)
	}
	if shell.Code != 0 {
		// tushare用code=40203等表示限流
		code := core.ErrBadSourceResp
		if shell.Code == 40203 {
			code = core.ErrRateLimit
		}
		return nil, nil, errs.NewMsg(code, "tushare %s code=%d msg=%s", apiName, shell.Code, shell.Msg)
	}
	if shell.Data == nil {
		return map[string]int{}, nil, nil
	}
	colIdx := make(map[string]int, len(shell.Data.Fields))
	for i, name := range shell.Data.Fields {
		colIdx[name] = i
	}
	log.Debug("tushare rsp", zap.String("api", apiName), zap.Int("rows", len(shell.Data.Items)))
	return colIdx, shell.Data.Items, nil
}

// colStr 取单元格字符串，缺列或空值返回""
func colStr(colIdx map[string]int, row []interface{}, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(row) || row[idx] == nil {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return ""
}

// colFloat 取单元格数值，缺列或空值返回0
func colFloat(colIdx map[string]int, row []interface{}, name string) float64 {
	idx, ok := colIdx[name]
	if !ok || idx >= len(row) || row[idx] == nil {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case json.Number:
		res, _ := v.Float64()
		return res
	}
	return 0
}
