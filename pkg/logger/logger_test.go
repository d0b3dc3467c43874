package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestNew はNew関数のログレベル設定を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("debugがfalseの場合Debugログが無効であること", func(t *testing.T) {
		t.Parallel()

		l, err := New(false)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if l.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Debugレベルが有効になっている")
		}
		if !l.Core().Enabled(zapcore.InfoLevel) {
			t.Error("Infoレベルが無効になっている")
		}
	})

	t.Run("debugがtrueの場合Debugログが有効であること", func(t *testing.T) {
		t.Parallel()

		l, err := New(true)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Debugレベルが無効になっている")
		}
	})
}

// TestSync はnilロガーに対するSyncがエラーにならないことを検証する。
func TestSync(t *testing.T) {
	t.Parallel()

	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) = %v, want nil", err)
	}
}
