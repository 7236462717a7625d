// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/gamehub/internal/model"
)

// SessionRepository はブラウザセッションの永続化インターフェース。
// セッションにはIdPが発行した認証情報のみを保存する。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.SessionRecord) error
	// FindByID は指定IDのセッションを取得する。見つからない場合・期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SessionRecord, error)
	// SaveCredential はセッションに紐づく認証情報を保存する。
	// セッションが存在しない場合は作成する。
	SaveCredential(ctx context.Context, session *model.SessionRecord) error
	// ClearCredential はセッションに紐づく認証情報を削除する。セッション自体は残る。
	ClearCredential(ctx context.Context, id string) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
