package utils

import (
	"context"
	"sync"

	"github.com/aistock/tdxdata/core"
	"github.com/aistock/tdxdata/errs"
	"github.com/aistock/tdxdata/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type PrgBar struct {
	bar      *progressbar.ProgressBar
	m        *deadlock.Mutex
	title    string
	DoneNum  int
	TotalNum int
}

func NewPrgBar(totalNum int, title string) *PrgBar {
	var pBar *progressbar.ProgressBar
	if totalNum > 0 {
		pBar = progressbar.Default(int64(totalNum), title)
	}
	return &PrgBar{
		bar:      pBar,
		m:        &deadlock.Mutex{},
		TotalNum: totalNum,
		title:    title,
	}
}

func (p *PrgBar) Add(num int) {
	if p.bar == nil {
		return
	}
	p.m.Lock()
	defer p.m.Unlock()
	p.DoneNum += num
	if p.DoneNum > p.TotalNum {
		log.Warn("pBar progress exceed", zap.String("title", p.title), zap.Int("max", p.TotalNum),
			zap.Int("cur", p.DoneNum))
		return
	}
	err_ := p.bar.Add(num)
	if err_ != nil {
		log.Error("add pBar fail", zap.String("title", p.title), zap.Error(err_))
	}
}

func (p *PrgBar) Close() {
	if p.bar == nil || p.TotalNum == 0 {
		return
	}
	if p.DoneNum < p.TotalNum {
		p.Add(p.TotalNum - p.DoneNum)
	}
	err := p.bar.Close()
	if err != nil {
		log.Error("close progressBar error", zap.Error(err))
	}
	p.bar = nil
}

/*
ParallelRun 按固定并发数执行任务，任一任务报错或ctx取消后不再派发新任务

返回首个错误；已在执行的任务会跑完。
*/
func ParallelRun(ctx context.Context, totalNum, concurNum int, handle func(ctx context.Context, i int) *errs.Error) *errs.Error {
	if concurNum <= 0 {
		concurNum = 1
	}
	guard := make(chan struct{}, concurNum)
	var wg sync.WaitGroup
	var retErr *errs.Error
	var lock deadlock.Mutex
	for i := 0; i < totalNum; i++ {
		lock.Lock()
		stop := retErr != nil
		lock.Unlock()
		if stop {
			break
		}
		select {
		case <-ctx.Done():
			lock.Lock()
			if retErr == nil {
				retErr = errs.New(core.ErrCancelled, ctx.Err())
			}
			lock.Unlock()
		case guard <- struct{}{}:
			wg.Add(1)
			go func(idx int) {
				defer func() {
					<-guard
					wg.Done()
				}()
				if err := handle(ctx, idx); err != nil {
					lock.Lock()
					if retErr == nil {
						retErr = err
					}
					lock.Unlock()
				}
			}(i)
		}
	}
	wg.Wait()
	return retErr
}
