package web

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"x-sub/config"
	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/web/controller"
	"x-sub/web/job"
	"x-sub/web/middleware"
	"x-sub/web/security"
	"x-sub/web/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Keep-Alive 监听器包装器：用于拦截新连接并设置 Keep-Alive 选项
type keepAliveListener struct {
	*net.TCPListener
	KeepAlivePeriod time.Duration
}

func (l keepAliveListener) Accept() (net.Conn, error) {
	tc, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if err := tc.SetKeepAlive(true); err != nil {
		logger.Warning("Failed to set KeepAlive:", err)
	}
	if err := tc.SetKeepAlivePeriod(l.KeepAlivePeriod); err != nil {
		logger.Warning("Failed to set KeepAlivePeriod:", err)
	}
	return tc, nil
}

// Server 节点上报、优惠券、返佣与管理接口，同时负责后台任务
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	api *controller.APIController

	services *controller.Services
	metrics  *service.Metrics
	notifier service.Notifier

	scheduler *job.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(
	services *controller.Services,
	metrics *service.Metrics,
	notifier service.Notifier,
) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:      ctx,
		cancel:   cancel,
		services: services,
		metrics:  metrics,
		notifier: notifier,
	}
}

// NewRouter 构建 API 路由，测试中直接使用
func (s *Server) NewRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware())

	if webDomain := config.GetWebDomain(); webDomain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(webDomain))
	}
	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	g := engine.Group("/")
	s.api = controller.NewAPIController(g, s.services)
	return engine
}

func (s *Server) startTask() error {
	s.scheduler = job.NewScheduler(CronLogger{})
	if err := s.scheduler.AddJob(config.GetLivenessCron(),
		job.NewLivenessJob(s.services.Nodes, s.metrics, s.notifier)); err != nil {
		return err
	}
	if err := s.scheduler.AddJob(config.GetQuotaSweepCron(), job.NewQuotaSweepJob(s.services.Quota)); err != nil {
		return err
	}
	return s.scheduler.Start()
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	engine := s.NewRouter()

	listenAddr := net.JoinHostPort(config.GetWebListen(), strconv.Itoa(config.GetWebPort()))
	baseListener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	var listener net.Listener
	if tcpListener, ok := baseListener.(*net.TCPListener); ok {
		listener = keepAliveListener{TCPListener: tcpListener, KeepAlivePeriod: 30 * time.Second}
	} else {
		listener = baseListener
	}
	s.listener = listener
	logger.Info("Web server running HTTP on", listener.Addr())

	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: config.HTTPReadHeaderTimeout,
		ErrorLog:          security.NewServerErrorLog("WebServer"),
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Web server stopped:", err)
		}
	}()

	return s.startTask()
}

func (s *Server) Stop() error {
	if s.scheduler != nil {
		_ = s.scheduler.Stop()
	}
	var err1 error
	var err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	s.cancel()
	if s.listener != nil {
		if err2 = s.listener.Close(); errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}
