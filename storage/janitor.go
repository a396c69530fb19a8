package storage

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/util"
)

// Janitor 按 cron 表达式定期清理过期结果
type Janitor struct {
	cron *cron.Cron
}

func StartJanitor(store *Store, schedule string, retention time.Duration) (*Janitor, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := store.Cleanup(retention, time.Now())
		if err != nil {
			util.Logger.Warn("cleanup results", zap.Int("removed", n), zap.Error(err))
			return
		}
		if n > 0 {
			util.Logger.Info("cleanup results", zap.Int("removed", n), zap.String("dir", store.Dir()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	return &Janitor{cron: c}, nil
}

// Stop 等待正在执行的清理结束
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
