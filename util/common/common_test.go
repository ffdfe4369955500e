package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorf(t *testing.T) {
	err := NewErrorf("test %d", 123)
	require.Error(t, err)
	assert.Equal(t, "test 123", err.Error())
}

func TestNewError(t *testing.T) {
	err := NewError("hello", "world")
	require.Error(t, err)
	assert.Equal(t, "hello world\n", err.Error())
}

func TestFormatTraffic(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0.00B"},
		{100, "100.00B"},
		{1023, "1023.00B"},
		{1024, "1.00KB"},
		{1536, "1.50KB"},
		{1024 * 1024, "1.00MB"},
		{1024 * 1024 * 1024, "1.00GB"},
		{1024 * 1024 * 1024 * 1024, "1.00TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatTraffic(tt.input), "FormatTraffic(%d)", tt.input)
	}
}

func TestCombine(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.NoError(t, Combine(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		e1 := errors.New("error 1")
		err := Combine(e1)
		require.Error(t, err)
		assert.ErrorIs(t, err, e1)
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		e1 := errors.New("error 1")
		e2 := errors.New("error 2")
		err := Combine(e1, nil, e2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
		assert.ErrorIs(t, err, e2)
	})
}

func TestServiceError(t *testing.T) {
	err := NewServiceError("NodeRegistry.Heartbeat", ErrNodeNotFound).
		WithCode(ErrCodeNotFound).
		WithContext("node_id", 7)

	assert.Equal(t, "[NodeRegistry.Heartbeat] (NOT_FOUND) 节点未找到", err.Error())
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, 7, err.Context["node_id"])
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))
	assert.NoError(t, Wrapf("op", nil, "ignored"))

	err := Wrapf("CouponLedger.Redeem", ErrCouponExhausted, "code %s", "SPRING")
	assert.ErrorIs(t, err, ErrCouponExhausted)
	assert.Contains(t, err.Error(), "code SPRING")
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{nil, ""},
		{ErrAccessDenied, ErrCodeForbidden},
		{fmt.Errorf("wrap: %w", ErrStaleSequence), ErrCodeConflict},
		{ErrCouponExhausted, ErrCodeConflict},
		{ErrCouponExpired, ErrCodeForbidden},
		{ErrCouponPlanNotApplicable, ErrCodeForbidden},
		{ErrCouponNotFound, ErrCodeNotFound},
		{ErrNodeNotFound, ErrCodeNotFound},
		{ErrInvalidInput, ErrCodeInvalidInput},
		{ErrUnreachable, ErrCodeUnreachable},
		{errors.New("boom"), ErrCodeInternal},
		{NewServiceError("op", errors.New("x")).WithCode(ErrCodeExternal), ErrCodeExternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, GetErrorCode(tt.err), "GetErrorCode(%v)", tt.err)
	}
}

func TestHandleError(t *testing.T) {
	assert.NoError(t, HandleError("op", nil))

	err := HandleErrorWithCode("op", ErrCodeConflict, ErrStaleSequence)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeConflict, se.Code)
	assert.Equal(t, "op", se.Op)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NewServiceError("op", ErrAccessDenied).WithCode(ErrCodeForbidden), http.StatusForbidden},
		{Wrap("op", ErrCouponExhausted), http.StatusConflict},
		{Wrap("op", ErrStaleSequence), http.StatusConflict},
		{Wrap("op", ErrNodeNotFound), http.StatusNotFound},
		{Wrap("op", ErrInvalidInput), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}
