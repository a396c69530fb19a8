package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/metrics"
	"github.com/chaos-io/rmbg/middleware"
	"github.com/chaos-io/rmbg/service"
	"github.com/chaos-io/rmbg/storage"
	"github.com/chaos-io/rmbg/util"
)

// multipart 边界和其他字段的余量
const formOverhead = 1 << 20

type RemoveHandler struct {
	svc       *service.BackgroundService
	store     *storage.Store
	metrics   *metrics.Metrics
	maxUpload int64
	version   string
}

type Option func(*RemoveHandler)

func WithStore(s *storage.Store) Option {
	return func(h *RemoveHandler) { h.store = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *RemoveHandler) { h.metrics = m }
}

func WithMaxUpload(n int64) Option {
	return func(h *RemoveHandler) { h.maxUpload = n }
}

func WithVersion(v string) Option {
	return func(h *RemoveHandler) { h.version = v }
}

func NewRemoveHandler(svc *service.BackgroundService, opts ...Option) *RemoveHandler {
	h := &RemoveHandler{svc: svc, version: "dev"}
	for _, o := range opts {
		o(h)
	}
	return h
}

// RemoveBackground 读取 multipart 字段 image，返回白底 PNG
func (h *RemoveHandler) RemoveBackground(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+formOverhead)
	}

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, service.ErrTooLarge)
			return
		}
		h.fail(c, service.ErrMissingInput)
		return
	}
	if file.Size == 0 {
		h.fail(c, service.ErrMissingInput)
		return
	}

	f, err := file.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.svc.Process(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}

	if res.Cached {
		c.Header("X-Cache", "HIT")
		h.observe(metrics.OutcomeCached)
	} else {
		c.Header("X-Cache", "MISS")
		h.observe(metrics.OutcomeOK)
	}
	if res.ID != "" {
		c.Header("X-Result-ID", res.ID)
	}

	util.Logger.Debug("background removed",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.String("filename", file.Filename),
		zap.Int("width", res.Width),
		zap.Int("height", res.Height),
		zap.Bool("cached", res.Cached))

	c.Data(http.StatusOK, "image/png", res.PNG)
}

func (h *RemoveHandler) fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status, msg := kind.Status()

	if status >= http.StatusInternalServerError {
		h.observe(metrics.OutcomeFailed)
		util.Logger.Error("failed to remove background",
			zap.String("kind", kind.String()), zap.Error(err))
	} else {
		h.observe(metrics.OutcomeBadInput)
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func (h *RemoveHandler) observe(outcome string) {
	if h.metrics != nil {
		h.metrics.ObserveRequest(outcome)
	}
}

// Health 健康检查
func (h *RemoveHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"model":   h.svc.Model(),
	})
}

// GetResult 按 id 回取已保存的结果
func (h *RemoveHandler) GetResult(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Result not found"})
		return
	}

	id := c.Param("id")
	f, err := h.store.Open(id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidID) {
			util.Logger.Warn("failed to open result", zap.String("id", id), zap.Error(err))
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Result not found"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "image/png", f, nil)
}
