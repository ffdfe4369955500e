package controller

import (
	"errors"
	"net/http"

	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/web/entity"

	"github.com/gin-gonic/gin"
)

func pureJsonMsg(c *gin.Context, statusCode int, success bool, msg string) {
	c.JSON(statusCode, entity.Msg{
		Success: success,
		Msg:     msg,
	})
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

// jsonMsgObj 成功返回 200；失败时按错误码选择状态码
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	if err == nil {
		c.JSON(http.StatusOK, entity.Msg{Success: true, Msg: msg, Obj: obj})
		return
	}
	status := common.HTTPStatus(err)
	if errors.Is(err, common.ErrAccessDenied) {
		// 拒绝访问不暴露原因
		pureJsonMsg(c, status, false, "access denied")
		return
	}
	if status >= http.StatusInternalServerError {
		logger.Warning(msg, err)
	}
	c.JSON(status, entity.Msg{Success: false, Msg: err.Error(), Obj: obj})
}

// bindFailed 表单校验失败
func bindFailed(c *gin.Context, err error) {
	pureJsonMsg(c, http.StatusBadRequest, false, err.Error())
}
