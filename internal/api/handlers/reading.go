package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/voltgazer/internal/apperr"
	"github.com/langchou/voltgazer/internal/models"
	"github.com/langchou/voltgazer/internal/normalize"
)

type readingRequest struct {
	Voltage   *float64 `json:"voltage"`
	Timestamp string   `json:"timestamp"`
}

type submitRequest struct {
	BatteryID string           `json:"battery_id"`
	Readings  []readingRequest `json:"readings" binding:"required"`
}

// SubmitReadings 批量写入读数
// POST /data
func (h *Handler) SubmitReadings(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	inputs := make([]models.ReadingInput, 0, len(req.Readings))
	for i, r := range req.Readings {
		if r.Voltage == nil {
			h.respondError(c, apperr.Validation("voltage", "is required").AtIndex(i))
			return
		}
		ts, err := normalize.ParseTimestamp(r.Timestamp)
		if err != nil {
			var ve *apperr.ValidationError
			if errors.As(err, &ve) {
				err = ve.AtIndex(i)
			}
			h.respondError(c, err)
			return
		}
		inputs = append(inputs, models.ReadingInput{Voltage: *r.Voltage, Timestamp: ts})
	}

	readings, err := h.ingest.Submit(c.Request.Context(), req.BatteryID, inputs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, readings)
}

// ListReadings 查询最近的读数
// GET /data?start_time=&end_time=
func (h *Handler) ListReadings(c *gin.Context) {
	start, err := parseBound(c, "start_time")
	if err != nil {
		h.respondError(c, err)
		return
	}
	end, err := parseBound(c, "end_time")
	if err != nil {
		h.respondError(c, err)
		return
	}

	page, err := h.query.List(c.Request.Context(), start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// parseBound 解析可选的时间查询参数，缺省返回 nil
func parseBound(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := normalize.ParseTimestamp(raw)
	if err != nil {
		return nil, apperr.Validation(name, "invalid ISO-8601 datetime")
	}
	return &t, nil
}

// respondError 按错误分类映射状态码
func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
		return
	}

	h.logger.Error("Request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	switch {
	case apperr.IsConstraintViolation(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store readings"})
	case apperr.IsStorageUnavailable(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
