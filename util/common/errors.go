package common

import (
	"errors"
	"fmt"
	"strings"
)

// =================================================================
// 错误码常量
// =================================================================

const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeInternal     = "INTERNAL"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeExternal     = "EXTERNAL"
	ErrCodeUnreachable  = "UNREACHABLE"
)

// =================================================================
// ServiceError 服务层错误包装
// =================================================================

type ServiceError struct {
	Op      string         // 操作名称，如 "TrafficAggregator.ApplyReport"
	Code    string         // 错误码，如 "NOT_FOUND"
	Err     error          // 原始错误
	Context map[string]any // 上下文信息
}

func (e *ServiceError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString("[")
		sb.WriteString(e.Op)
		sb.WriteString("] ")
	}
	if e.Code != "" {
		sb.WriteString("(")
		sb.WriteString(e.Code)
		sb.WriteString(") ")
	}
	if e.Err != nil {
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError 创建服务层错误
func NewServiceError(op string, err error) *ServiceError {
	return &ServiceError{
		Op:  op,
		Err: err,
	}
}

// WithCode 添加错误码
func (e *ServiceError) WithCode(code string) *ServiceError {
	e.Code = code
	return e
}

// WithContext 添加上下文信息
func (e *ServiceError) WithContext(key string, val any) *ServiceError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = val
	return e
}

// Wrap 快速包装错误
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewServiceError(op, err)
}

// Wrapf 带格式化消息包装错误
func Wrapf(op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return NewServiceError(op, fmt.Errorf("%s: %w", msg, err))
}

// =================================================================
// 通用错误定义
// =================================================================

var (
	// ErrNotFound 资源未找到
	ErrNotFound = errors.New("资源未找到")

	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("无效输入")

	// ErrUnauthorized 未授权
	ErrUnauthorized = errors.New("未授权访问")

	// ErrInternal 内部错误
	ErrInternal = errors.New("内部服务器错误")
)

// =================================================================
// 订阅与用户
// =================================================================

var (
	// ErrAccessDenied 订阅拒绝访问：未知 token、封禁或配额/到期暂停，对外不区分原因
	ErrAccessDenied = errors.New("access denied")

	// ErrUserNotFound 用户未找到
	ErrUserNotFound = errors.New("用户未找到")

	// ErrPlanNotFound 套餐未找到
	ErrPlanNotFound = errors.New("套餐未找到")
)

// =================================================================
// 节点与流量上报
// =================================================================

var (
	// ErrNodeNotFound 节点未找到
	ErrNodeNotFound = errors.New("节点未找到")

	// ErrStaleSequence 上报序号不大于已应用序号（重复或乱序）
	ErrStaleSequence = errors.New("上报序号已过期或重复")

	// ErrUnreachable 节点探测超时或不可达
	ErrUnreachable = errors.New("节点不可达")
)

// =================================================================
// 优惠券
// =================================================================

var (
	ErrCouponNotFound          = errors.New("优惠券不存在")
	ErrCouponExpired           = errors.New("优惠券已过期")
	ErrCouponExhausted         = errors.New("优惠券已用完")
	ErrCouponPlanNotApplicable = errors.New("优惠券不适用于该套餐")
)

// =================================================================
// 辅助函数
// =================================================================

// WrapError 包装错误，添加上下文信息
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrCouponNotFound)
}
