package user

import "errors"

var (
	// ErrNotFound は対象のユーザーがIDプロバイダまたはDBに存在しないことを示す。
	ErrNotFound = errors.New("user not found")
	// ErrEmailAlreadyExists はメールアドレスが既に登録されていることを示す。
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrInvalidArgument はバックエンドが入力値を拒否したことを示す。
	ErrInvalidArgument = errors.New("invalid argument")
)
