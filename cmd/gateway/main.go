// API Gatewayサービスのエントリポイント。
// /api/users 以下のリクエストをuser-managerに転送する。
// 外部からアクセス可能な唯一のサービスとなる。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/userrelay/internal/config"
	"github.com/nao1215/userrelay/internal/gateway"
	"github.com/nao1215/userrelay/pkg/httpclient"
	"github.com/nao1215/userrelay/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:           "api-gateway",
		Short:         "API Gateway for the user service",
		Long:          "Forwards /api/users requests with their bearer token to user-manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			cfg := config.LoadGateway()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging (overrides DEBUG)")
	return cmd
}

func run(parent context.Context, cfg config.Gateway) error {
	zapLogger, err := logger.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := httpclient.New(cfg.UserManagerURL, cfg.UpstreamTimeout)
	defer client.Close()

	zapLogger.Info("Gatewayサービスを起動します",
		zap.String("port", cfg.Port),
		zap.String("user_manager_url", cfg.UserManagerURL),
		zap.Duration("upstream_timeout", cfg.UpstreamTimeout),
		zap.Bool("propagate_upstream_status", cfg.PropagateUpstreamStatus),
	)
	if err := gateway.NewServer(cfg, client, zapLogger).Run(ctx); err != nil {
		zapLogger.Error("Gatewayサービスが異常終了しました", zap.Error(err))
		return err
	}
	zapLogger.Info("Gatewayサービスを停止しました")
	return nil
}
