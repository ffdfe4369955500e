package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"x-sub/util/common"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)
)

// Validator 返回包级共享的校验器，注册了业务自定义规则
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("coupon_code", func(fl validator.FieldLevel) bool {
			return couponCodePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// validateStruct 校验失败时返回 INVALID_INPUT 错误，消息中只列出字段名与规则
func validateStruct(op string, v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
		}
		err = fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(parts, ", "))
	} else {
		err = fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return common.NewServiceError(op, err).WithCode(common.ErrCodeInvalidInput)
}

func invalidInput(op, format string, args ...any) error {
	err := fmt.Errorf("%w: %s", common.ErrInvalidInput, fmt.Sprintf(format, args...))
	return common.NewServiceError(op, err).WithCode(common.ErrCodeInvalidInput)
}
