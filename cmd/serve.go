package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/weiwangfds/racenotes/config"
	"github.com/weiwangfds/racenotes/internal/logger"
	"github.com/weiwangfds/racenotes/internal/metrics"
	"github.com/weiwangfds/racenotes/internal/router"
	"github.com/weiwangfds/racenotes/internal/service/cache"
	"github.com/weiwangfds/racenotes/internal/service/note"
)

// shutdownTimeout 优雅关闭的最长等待时间
const shutdownTimeout = 30 * time.Second

func serveCommand(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Connect to the remote database, open the offline cache and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				a.cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server.port")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	offline := cache.OpenOrMemory(cfg.Cache, cache.WithMetrics(m))
	defer offline.Close()

	svc := note.NewDataService(cfg, offline, note.WithMetrics(m))
	defer svc.Close()
	if !svc.Connect() {
		logger.Warn("[服务] 远程数据库不可用, 以离线模式启动, 新笔记将进入 outbox")
	}

	r := router.NewRouter(cfg, svc, m)
	srv, err := newServer(cfg.Server, r.GetEngine())
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[服务] 监听端口 %d (HTTPS: %v, HTTP/2: %v)", cfg.Server.Port, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("[服务] 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("[服务] 服务器已退出")
	return nil
}

// newServer 构造HTTP服务器
// HTTPS 时通过 ALPN 协商 HTTP/2, 明文时使用 h2c
func newServer(cfg config.ServerConfig, handler http.Handler) (*http.Server, error) {
	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	if !cfg.EnableHTTP2 {
		// 非 nil 的空 TLSNextProto 会关闭标准库自带的 HTTP/2
		srv.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}
		return srv, nil
	}

	if !cfg.EnableHTTPS {
		srv.Handler = h2c.NewHandler(handler, &http2.Server{})
		return srv, nil
	}

	srv.TLSConfig = &tls.Config{NextProtos: []string{"h2", "http/1.1"}}
	if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
		return nil, fmt.Errorf("failed to configure http2: %w", err)
	}
	return srv, nil
}
