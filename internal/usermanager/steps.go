package usermanager

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// step は書き込み操作を構成する1ステップ。
// compensateがnilのステップは取り消せない。
type step struct {
	// name はログに出力するステップ名。
	name string
	// action はステップ本体。
	action func(ctx context.Context) error
	// compensate は後続ステップが失敗した場合にactionの効果を取り消す。
	compensate func(ctx context.Context) error
}

// stepError はステップの失敗を表す。Unwrapで元のエラーを返す。
type stepError struct {
	// step は失敗したステップ名。
	step string
	// err はステップが返したエラー。
	err error
	// compensated は完了済みの全ステップの補償に成功したかどうか。
	compensated bool
}

// Error はエラーメッセージを返す。
func (e *stepError) Error() string {
	return fmt.Sprintf("ステップ %s の実行に失敗 (補償済み=%t): %v", e.step, e.compensated, e.err)
}

// Unwrap は元のエラーを返す。
func (e *stepError) Unwrap() error {
	return e.err
}

// runSteps はステップを順に実行する。
// 途中で失敗した場合は完了済みのステップを逆順に補償し、*stepError を返す。
// 補償は呼び出し元の切断に影響されないよう、キャンセルを切り離したコンテキストで実行する。
func runSteps(ctx context.Context, logger *zap.Logger, op string, steps ...step) error {
	done := make([]step, 0, len(steps))
	for _, s := range steps {
		if err := s.action(ctx); err != nil {
			logger.Debug("ステップ実行エラー",
				zap.String("operation", op),
				zap.String("step", s.name),
				zap.Error(err),
			)
			return &stepError{
				step:        s.name,
				err:         err,
				compensated: compensate(context.WithoutCancel(ctx), logger, op, done),
			}
		}
		done = append(done, s)
	}
	return nil
}

// compensate は完了済みのステップを逆順に取り消す。
// 全ての補償に成功した場合にtrueを返す。
func compensate(ctx context.Context, logger *zap.Logger, op string, done []step) bool {
	ok := true
	for i := len(done) - 1; i >= 0; i-- {
		s := done[i]
		if s.compensate == nil {
			ok = false
			logger.Warn("補償できないステップのため、バックエンド間の不整合が残ります",
				zap.String("operation", op),
				zap.String("step", s.name),
			)
			continue
		}
		if err := s.compensate(ctx); err != nil {
			ok = false
			logger.Error("補償アクションに失敗しました",
				zap.String("operation", op),
				zap.String("step", s.name),
				zap.Error(err),
			)
			continue
		}
		logger.Info("補償アクションを実行しました",
			zap.String("operation", op),
			zap.String("step", s.name),
		)
	}
	return ok
}
