package sub

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"x-sub/config"
	"x-sub/util/common"
	"x-sub/web/entity"
	"x-sub/web/service"

	"github.com/gin-gonic/gin"
)

// SUBController 订阅相关接口
type SUBController struct {
	builder *service.SubscriptionBuilder
}

func NewSUBController(g *gin.RouterGroup, builder *service.SubscriptionBuilder) *SUBController {
	a := &SUBController{builder: builder}
	a.initRouter(g)
	return a
}

func (a *SUBController) initRouter(g *gin.RouterGroup) {
	gLink := g.Group("/subscribe")
	gLink.GET("/config", a.subs)
	gLink.GET("/link", a.link)
	gLink.POST("/reset-token", a.resetToken)
	gLink.POST("/test-connectivity", a.testConnectivity)
}

// fail 拒绝访问只返回统一的文本，不暴露原因
func fail(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if errors.Is(err, common.ErrAccessDenied) {
		c.String(http.StatusForbidden, "access denied")
		return
	}
	c.JSON(status, entity.Msg{Success: false, Msg: err.Error()})
}

func (a *SUBController) subs(c *gin.Context) {
	format, ok := service.ParseFormat(c.Query("format"))
	if !ok {
		c.JSON(http.StatusBadRequest, entity.Msg{Msg: "unsupported format"})
		return
	}
	sub, err := a.builder.BuildConfig(c.Request.Context(), c.Query("token"), format)
	if err != nil {
		fail(c, err)
		return
	}

	info := sub.UserInfo
	c.Header("Subscription-Userinfo", fmt.Sprintf("upload=%d; download=%d; total=%d; expire=%d",
		info.Upload, info.Download, info.Total, info.Expire))
	c.Header("Profile-Update-Interval", strconv.Itoa(config.GetSubUpdateInterval()))

	etag := fmt.Sprintf(`"%x"`, sub.Document.Fingerprint)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, sub.Document.ContentType, sub.Document.Body)
}

func (a *SUBController) link(c *gin.Context) {
	token := c.Query("token")
	if c.Query("qr") == "1" {
		png, err := a.builder.SubscribeQRCode(c.Request.Context(), token)
		if err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", png)
		return
	}
	link, err := a.builder.SubscribeLink(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.Msg{Success: true, Obj: gin.H{"link": link}})
}

func (a *SUBController) resetToken(c *gin.Context) {
	form := &entity.TokenForm{}
	if err := c.ShouldBind(form); err != nil {
		fail(c, common.NewServiceError("resetToken", common.ErrAccessDenied))
		return
	}
	token, err := a.builder.ResetToken(c.Request.Context(), form.Token)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.Msg{Success: true, Obj: gin.H{"token": token}})
}

func (a *SUBController) testConnectivity(c *gin.Context) {
	form := &entity.ConnectivityForm{}
	if err := c.ShouldBind(form); err != nil {
		c.JSON(http.StatusBadRequest, entity.Msg{Msg: err.Error()})
		return
	}
	results, err := a.builder.TestSubscribeConnectivity(c.Request.Context(), form.Token, form.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.Msg{Success: true, Obj: results})
}
