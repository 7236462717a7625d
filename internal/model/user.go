// Package model はドメインモデルを定義する。
package model

import "time"

// UserRecord はIdPから受け取ったサインイン中ユーザーのスナップショットを表す。
// フィールド単位で書き換えず、セッション変更イベントごとに丸ごと置き換える。
type UserRecord struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Label はナビゲーションバーに表示する名前を返す。
// displayNameが未設定の場合はemailを返す。
func (u *UserRecord) Label() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// SessionRecord はブラウザセッションごとに保持するIdPの認証情報を表す。
// UIDが空の場合は「ブラウザセッションは存在するがサインインしていない」状態。
type SessionRecord struct {
	ID             string
	UID            string
	IDToken        string
	RefreshToken   string
	TokenExpiresAt time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SignedIn はセッションにサインイン済みの認証情報が保存されているかを返す。
func (s *SessionRecord) SignedIn() bool {
	return s != nil && s.UID != "" && s.RefreshToken != ""
}
