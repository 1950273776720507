package utils

import (
	"context"
	"math/rand"
	"time"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"go.uber.org/zap"
)

/*
RetryOpt 重试配置，零值时用默认值
*/
type RetryOpt struct {
	MaxAttempts int           // 默认3
	BaseWait    time.Duration // 默认1s
	MaxWait     time.Duration // 默认30s
	Jitter      float64       // 抖动比例，默认0.2
}

func (o *RetryOpt) fill() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseWait <= 0 {
		o.BaseWait = time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Second
	}
	if o.Jitter <= 0 {
		o.Jitter = 0.2
	}
}

/*
RetryWait 第attempt次(从0开始)失败后的等待时长，指数退避加随机抖动
*/
func (o *RetryOpt) RetryWait(attempt int) time.Duration {
	wait := o.BaseWait << uint(attempt)
	if wait > o.MaxWait {
		wait = o.MaxWait
	}
	delta := float64(wait) * o.Jitter * (rand.Float64()*2 - 1)
	return wait + time.Duration(delta)
}

/*
Retry 执行fn，瞬时错误按指数退避重试，永久错误立即返回

瞬时/永久由core.IsTransient按错误码判定
*/
func Retry(ctx context.Context, name string, opt RetryOpt, fn func() *errs.Error) *errs.Error {
	opt.fill()
	var err *errs.Error
	for attempt := 0; attempt < opt.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !core.IsTransient(err.Code) {
			return err
		}
		if attempt+1 >= opt.MaxAttempts {
			break
		}
		wait := opt.RetryWait(attempt)
		log.Warn("retrying", zap.String("name", name), zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait), zap.String("err", err.Short()))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errs.New(core.ErrCancelled, ctx.Err())
		}
	}
	return err
}
