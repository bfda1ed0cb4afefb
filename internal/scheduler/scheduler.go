// Package scheduler 按月定时触发统计运行。
package scheduler

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler cron 定时器的薄封装
type Scheduler struct {
	cron *cron.Cron
}

// New 创建调度器
func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Start 按 cron 表达式定时执行 job，随后阻塞直到 stop 被关闭
func (s *Scheduler) Start(spec string, job func(), stop <-chan struct{}) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("无效的 cron 表达式 %q: %w", spec, err)
	}
	s.cron.Start()
	log.Printf("定时任务已启动: %s", spec)

	<-stop
	ctx := s.cron.Stop()
	<-ctx.Done()
	return nil
}
