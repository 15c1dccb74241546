// Package apperr 定义服务内的错误分类，API 层据此映射 HTTP 状态码
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError 输入不合法，对应 400，不重试
type ValidationError struct {
	Field  string
	Index  int // 批量读数中的下标，-1 表示与下标无关
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("readings[%d].%s: %s", e.Index, e.Field, e.Reason)
	}
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation 创建与下标无关的校验错误
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Index: -1, Reason: reason}
}

// AtIndex 返回携带读数下标的副本
func (e *ValidationError) AtIndex(i int) *ValidationError {
	out := *e
	out.Index = i
	return &out
}

// StorageUnavailableError 存储不可达或不可用
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable (%s): %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error {
	return e.Err
}

// ConstraintViolationError 写入违反存储端约束，整个批次回滚
type ConstraintViolationError struct {
	Constraint string
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("constraint %q violated: %v", e.Constraint, e.Err)
	}
	return fmt.Sprintf("constraint violated: %v", e.Err)
}

func (e *ConstraintViolationError) Unwrap() error {
	return e.Err
}

// IsValidation 判断错误链中是否包含 ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorageUnavailable 判断错误链中是否包含 StorageUnavailableError
func IsStorageUnavailable(err error) bool {
	var se *StorageUnavailableError
	return errors.As(err, &se)
}

// IsConstraintViolation 判断错误链中是否包含 ConstraintViolationError
func IsConstraintViolation(err error) bool {
	var ce *ConstraintViolationError
	return errors.As(err, &ce)
}
