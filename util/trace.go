package util

import (
	"time"

	"go.uber.org/zap"
)

// Trace 记录一段调用的耗时，用法: defer util.Trace("remove background")()
func Trace(msg string) func() {
	start := time.Now()
	return func() {
		Logger.Debug(msg, zap.Duration("cost", time.Since(start)))
	}
}
