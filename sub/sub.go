package sub

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"x-sub/config"
	"x-sub/logger"
	"x-sub/util/common"
	"x-sub/web/middleware"
	"x-sub/web/network"
	"x-sub/web/security"
	"x-sub/web/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Server 面向客户端的订阅服务
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	sub     *SUBController
	builder *service.SubscriptionBuilder

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(builder *service.SubscriptionBuilder) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		builder: builder,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Server) initRouter() *gin.Engine {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RecoveryMiddleware())

	if subDomain := config.GetSubDomain(); subDomain != "" {
		engine.Use(middleware.DomainValidatorMiddleware(subDomain))
	}

	limiter := security.NewRateLimiter(security.RateLimitConfig{
		PerSecond: config.GetSubRateLimit(),
		Burst:     config.GetSubRateBurst(),
	})
	engine.Use(middleware.RateLimitMiddleware(limiter))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	g := engine.Group("/")
	s.sub = NewSUBController(g, s.builder)
	return engine
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	engine := s.initRouter()

	listenAddr := net.JoinHostPort(config.GetSubListen(), strconv.Itoa(config.GetSubPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	certFile, keyFile := config.GetSubCertFile(), config.GetSubKeyFile()
	if certFile != "" || keyFile != "" {
		cert, err := security.LoadCertificate(certFile, keyFile, time.Now())
		if err == nil {
			listener = tls.NewListener(network.NewAutoHttpsListener(listener), security.NewTLSConfig(cert))
			logger.Info("Sub server running HTTPS on", listener.Addr())
		} else {
			logger.Error("Error loading certificates:", err)
			logger.Info("Sub server running HTTP on", listener.Addr())
		}
	} else {
		logger.Info("Sub server running HTTP on", listener.Addr())
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: config.HTTPReadHeaderTimeout,
		ErrorLog:          security.NewServerErrorLog("SubServer"),
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Sub server stopped:", err)
		}
	}()

	return nil
}

func (s *Server) Stop() error {
	var err1 error
	var err2 error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		err1 = s.httpServer.Shutdown(ctx)
	}
	s.cancel()
	if s.listener != nil {
		err2 = s.listener.Close()
		if errors.Is(err2, net.ErrClosed) {
			err2 = nil
		}
	}
	return common.Combine(err1, err2)
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}
