package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/voltgazer/internal/apperr"
	"github.com/langchou/voltgazer/internal/metrics"
	"github.com/langchou/voltgazer/internal/models"
	"github.com/langchou/voltgazer/internal/normalize"
)

// ReadingWriter 批量写入读数
type ReadingWriter interface {
	InsertBatch(ctx context.Context, readings []*models.Reading) error
}

// ReadingReader 按时间范围读取读数
type ReadingReader interface {
	QueryRange(ctx context.Context, filter models.ReadingFilter) ([]*models.Reading, error)
}

// Publisher 批次提交成功后的通知出口（WebSocket 推送）
type Publisher interface {
	PublishReadings(readings []*models.Reading)
}

// IngestionService 读数写入服务
type IngestionService struct {
	logger    *zap.Logger
	store     ReadingWriter
	publisher Publisher
}

// NewIngestionService 创建写入服务，publisher 可为 nil
func NewIngestionService(logger *zap.Logger, store ReadingWriter, publisher Publisher) *IngestionService {
	return &IngestionService{
		logger:    logger,
		store:     store,
		publisher: publisher,
	}
}

// Submit 校验并在一个事务内写入一批读数，按输入顺序返回带 ID 的记录
//
// battery_id 去掉首尾空白后入库；时间戳的缺失由调用方在解析阶段拒绝。
func (s *IngestionService) Submit(ctx context.Context, batteryID string, inputs []models.ReadingInput) ([]*models.Reading, error) {
	batteryID = strings.TrimSpace(batteryID)
	if err := normalize.ValidateBatteryID(batteryID); err != nil {
		metrics.BatchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	readings := make([]*models.Reading, 0, len(inputs))
	for i, in := range inputs {
		if err := normalize.ValidateVoltage(in.Voltage); err != nil {
			metrics.BatchesTotal.WithLabelValues("invalid").Inc()
			return nil, withIndex(err, i)
		}
		readings = append(readings, &models.Reading{
			BatteryID: batteryID,
			Voltage:   in.Voltage,
			Timestamp: normalize.NormalizeTimestamp(in.Timestamp),
		})
	}

	if err := s.store.InsertBatch(ctx, readings); err != nil {
		metrics.BatchesTotal.WithLabelValues("storage_error").Inc()
		s.logger.Error("Failed to insert readings",
			zap.String("battery_id", batteryID),
			zap.Int("count", len(readings)),
			zap.Error(err))
		return nil, err
	}

	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	metrics.ReadingsIngested.Add(float64(len(readings)))
	s.logger.Debug("Readings inserted",
		zap.String("battery_id", batteryID),
		zap.Int("count", len(readings)))

	if s.publisher != nil && len(readings) > 0 {
		s.publisher.PublishReadings(readings)
	}

	return readings, nil
}

// QueryService 读数查询服务
type QueryService struct {
	logger *zap.Logger
	store  ReadingReader
}

// NewQueryService 创建查询服务
func NewQueryService(logger *zap.Logger, store ReadingReader) *QueryService {
	return &QueryService{
		logger: logger,
		store:  store,
	}
}

// List 查询最近的读数，可选时间范围（闭区间），最多返回 100 条
//
// TotalItems 只是本页条数；结果被截断时它不代表表内总数。
func (s *QueryService) List(ctx context.Context, start, end *time.Time) (*models.ReadingPage, error) {
	if start != nil && end != nil && start.After(*end) {
		return nil, apperr.Validation("start_time", "must not be after end_time")
	}

	filter := models.ReadingFilter{}
	if start != nil {
		t := normalize.NormalizeTimestamp(*start)
		filter.Start = &t
	}
	if end != nil {
		t := normalize.NormalizeTimestamp(*end)
		filter.End = &t
	}

	items, err := s.store.QueryRange(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to query readings", zap.Error(err))
		return nil, err
	}
	if items == nil {
		items = []*models.Reading{}
	}

	return &models.ReadingPage{
		Items:      items,
		TotalItems: len(items),
	}, nil
}

func withIndex(err error, i int) error {
	if ve, ok := err.(*apperr.ValidationError); ok {
		return ve.AtIndex(i)
	}
	return err
}
