// user-managerサービスのエントリポイント。
// ユーザーのCRUDをIDプロバイダとドキュメントDBへの操作に変換する。
// Firebaseの認証情報が無い場合はローカルSQLiteで動作する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/userrelay/internal/config"
	"github.com/nao1215/userrelay/internal/usermanager"
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
		Use:           "user-manager",
		Short:         "User management service",
		Long:          "Manages users in the identity backend and mirrors them into the document database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadDotEnv()
			cfg := config.LoadUserManager()
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

func run(parent context.Context, cfg config.UserManager) error {
	zapLogger, err := logger.New(cfg.Debug)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := usermanager.OpenBackend(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Error("バックエンドの初期化に失敗しました", zap.Error(err))
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			zapLogger.Warn("バックエンドの解放に失敗しました", zap.Error(err))
		}
	}()

	zapLogger.Info("user-managerサービスを起動します",
		zap.String("port", cfg.Port),
		zap.String("backend", backend.Source),
	)
	if err := usermanager.NewServer(cfg.Port, backend, cfg.AllowedOrigins, zapLogger).Run(ctx); err != nil {
		zapLogger.Error("user-managerサービスが異常終了しました", zap.Error(err))
		return err
	}
	zapLogger.Info("user-managerサービスを停止しました")
	return nil
}
