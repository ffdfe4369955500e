package common

import (
	"errors"
	"fmt"
	"net/http"

	"x-sub/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}

// =================================================================
// 统一错误处理辅助函数
// =================================================================

// HandleError 统一错误处理，记录日志并包装错误
func HandleError(op string, err error) error {
	if err == nil {
		return nil
	}
	logger.Warningf("[%s] %v", op, err)
	return NewServiceError(op, err)
}

// HandleErrorWithCode 带错误码的统一错误处理
func HandleErrorWithCode(op string, code string, err error) error {
	if err == nil {
		return nil
	}
	logger.Warningf("[%s] (%s) %v", op, code, err)
	return NewServiceError(op, err).WithCode(code)
}

// IgnoreError 忽略错误，仅记录警告日志
func IgnoreError(op string, err error) {
	if err != nil {
		logger.Warningf("[%s] ignored error: %v", op, err)
	}
}

// GetErrorCode 从错误中提取错误码
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	switch {
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrCouponExpired),
		errors.Is(err, ErrCouponPlanNotApplicable):
		return ErrCodeForbidden
	case errors.Is(err, ErrStaleSequence), errors.Is(err, ErrCouponExhausted):
		return ErrCodeConflict
	case IsNotFoundError(err):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrUnauthorized):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrUnreachable):
		return ErrCodeUnreachable
	default:
		return ErrCodeInternal
	}
}

// HTTPStatus 错误码对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch GetErrorCode(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUnreachable, ErrCodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
