package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Code はIdPが返すエラーを分類した既知コード。
// このセットは閉じており、未知のコードはCodeUnknownとして生メッセージを保持する。
type Code string

const (
	CodeInvalidEmail     Code = "InvalidEmail"
	CodeWeakPassword     Code = "WeakPassword"
	CodeEmailInUse       Code = "EmailInUse"
	CodeProviderDisabled Code = "ProviderDisabled"
	CodeUserNotFound     Code = "UserNotFound"
	CodeWrongPassword    Code = "WrongPassword"
	CodeUserDisabled     Code = "UserDisabled"
	CodeSessionExpired   Code = "SessionExpired"
	CodeUnknown          Code = "Unknown"
)

// ProviderError はIdPがリクエストを拒否したことを表す。
// Messageには未知コードの場合のフォールバック表示用にIdPの生メッセージを保持する。
type ProviderError struct {
	Code    Code
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error [%s]: %s", e.Code, e.Message)
}

// ErrNoActiveSession はサインインしていない状態でプロフィール更新を試みた場合に返される。
var ErrNoActiveSession = errors.New("no user is currently logged in")

// ErrTokenExpired はIDトークンの有効期限切れを表す。呼び出し元はリフレッシュを試みる。
var ErrTokenExpired = errors.New("id token expired")

// CodeOf はエラーチェーンからProviderErrorのコードを取り出す。
// ProviderErrorを含まない場合は空文字列を返す。
func CodeOf(err error) Code {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

// firebaseCodes はIdentity Toolkit / Secure Token APIのエラーメッセージとCodeの対応表。
var firebaseCodes = map[string]Code{
	"EMAIL_EXISTS":              CodeEmailInUse,
	"WEAK_PASSWORD":             CodeWeakPassword,
	"INVALID_EMAIL":             CodeInvalidEmail,
	"MISSING_EMAIL":             CodeInvalidEmail,
	"OPERATION_NOT_ALLOWED":     CodeProviderDisabled,
	"PASSWORD_LOGIN_DISABLED":   CodeProviderDisabled,
	"EMAIL_NOT_FOUND":           CodeUserNotFound,
	"INVALID_PASSWORD":          CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS": CodeWrongPassword,
	"USER_DISABLED":             CodeUserDisabled,
	"TOKEN_EXPIRED":             CodeSessionExpired,
	"INVALID_REFRESH_TOKEN":     CodeSessionExpired,
	"INVALID_ID_TOKEN":          CodeSessionExpired,
	"USER_NOT_FOUND":            CodeSessionExpired,
}

// parseFirebaseError はFirebaseのエラーメッセージ（例: "WEAK_PASSWORD : Password should be at least 6 characters"）
// をProviderErrorに変換する。
func parseFirebaseError(message string) *ProviderError {
	key := message
	if i := strings.Index(message, " : "); i >= 0 {
		key = message[:i]
	}
	key = strings.TrimSpace(key)

	if code, ok := firebaseCodes[key]; ok {
		return &ProviderError{Code: code, Message: message}
	}
	return &ProviderError{Code: CodeUnknown, Message: message}
}
