package usermanager

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

// recorder はステップの実行順を記録する。
type recorder struct {
	calls []string
}

func (r *recorder) step(name string, fail bool, compensable bool, compensateFails bool) step {
	s := step{
		name: name,
		action: func(context.Context) error {
			r.calls = append(r.calls, name)
			if fail {
				return errors.New(name + " failed")
			}
			return nil
		},
	}
	if compensable {
		s.compensate = func(context.Context) error {
			r.calls = append(r.calls, "undo:"+name)
			if compensateFails {
				return errors.New("undo " + name + " failed")
			}
			return nil
		}
	}
	return s
}

// TestRunSteps はrunStepsの実行順と補償を検証する。
func TestRunSteps(t *testing.T) {
	t.Parallel()

	t.Run("全ステップが成功した場合は補償されないこと", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		err := runSteps(context.Background(), zap.NewNop(), "test",
			r.step("a", false, true, false),
			r.step("b", false, true, false),
		)
		if err != nil {
			t.Fatalf("runSteps()でエラーが発生: %v", err)
		}
		if diff := cmp.Diff([]string{"a", "b"}, r.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("失敗したステップより前のステップが逆順に補償されること", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		err := runSteps(context.Background(), zap.NewNop(), "test",
			r.step("a", false, true, false),
			r.step("b", false, true, false),
			r.step("c", true, true, false),
			r.step("d", false, true, false),
		)
		var se *stepError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *stepError", err)
		}
		if se.step != "c" {
			t.Errorf("step = %q, want c", se.step)
		}
		if !se.compensated {
			t.Error("compensated = false, want true")
		}
		if diff := cmp.Diff([]string{"a", "b", "c", "undo:b", "undo:a"}, r.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("元のエラーがerrors.Isで判定できること", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("sentinel")
		err := runSteps(context.Background(), zap.NewNop(), "test", step{
			name:   "only",
			action: func(context.Context) error { return sentinel },
		})
		if !errors.Is(err, sentinel) {
			t.Errorf("errors.Is(err, sentinel) = false, err=%v", err)
		}
	})

	t.Run("補償できないステップがある場合compensatedがfalseになること", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		err := runSteps(context.Background(), zap.NewNop(), "test",
			r.step("a", false, false, false),
			r.step("b", true, true, false),
		)
		var se *stepError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *stepError", err)
		}
		if se.compensated {
			t.Error("compensated = true, want false")
		}
	})

	t.Run("補償に失敗しても残りの補償が実行されること", func(t *testing.T) {
		t.Parallel()

		r := &recorder{}
		err := runSteps(context.Background(), zap.NewNop(), "test",
			r.step("a", false, true, false),
			r.step("b", false, true, true),
			r.step("c", true, true, false),
		)
		var se *stepError
		if !errors.As(err, &se) {
			t.Fatalf("err = %v, want *stepError", err)
		}
		if se.compensated {
			t.Error("compensated = true, want false")
		}
		if diff := cmp.Diff([]string{"a", "b", "c", "undo:b", "undo:a"}, r.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("キャンセル済みのコンテキストでも補償が実行されること", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		var undoErr error
		err := runSteps(ctx, zap.NewNop(), "test",
			step{
				name:   "a",
				action: func(context.Context) error { return nil },
				compensate: func(ctx context.Context) error {
					undoErr = ctx.Err()
					return nil
				},
			},
			step{
				name: "b",
				action: func(context.Context) error {
					cancel()
					return context.Canceled
				},
			},
		)
		if err == nil {
			t.Fatal("runSteps()がエラーを返すべきだが、nilが返った")
		}
		if undoErr != nil {
			t.Errorf("補償時のctx.Err() = %v, want nil", undoErr)
		}
	})
}
