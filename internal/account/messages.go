package account

import (
	"errors"

	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/model"
)

// RegistrationNotice は登録成功後にログインページで表示する通知。
const RegistrationNotice = "Registration successful! You can now login."

const (
	providerDisabledMessage = "Email/Password authentication is not enabled. Please contact admin."
	genericMessage          = "Something went wrong. Please try again."
	sessionExpiredMessage   = "Your session has expired. Please login again."
)

var loginMessages = map[identity.Code]string{
	identity.CodeUserNotFound:     "User not found. Please register first.",
	identity.CodeWrongPassword:    "Wrong password. Please try again.",
	identity.CodeInvalidEmail:     "Invalid email address.",
	identity.CodeUserDisabled:     "This user account has been disabled.",
	identity.CodeProviderDisabled: providerDisabledMessage,
}

var registrationMessages = map[identity.Code]string{
	identity.CodeEmailInUse:       "This email is already in use",
	identity.CodeWeakPassword:     "Password is too weak (at least 6 characters)",
	identity.CodeInvalidEmail:     "Invalid email address",
	identity.CodeProviderDisabled: providerDisabledMessage,
}

// LoginMessage はログイン失敗時にフォームへ表示するメッセージを返す。
func LoginMessage(err error) string {
	return messageFor(err, loginMessages)
}

// RegistrationMessage は登録失敗時にフォームへ表示するメッセージを返す。
func RegistrationMessage(err error) string {
	return messageFor(err, registrationMessages)
}

// messageFor は既知コードを表に従って変換し、未知のコードはIdPの生メッセージを返す。
// IdP以外の失敗（通信エラーなど）は内部情報を出さずに汎用メッセージを返す。
func messageFor(err error, table map[identity.Code]string) string {
	if err == nil {
		return ""
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	if errors.Is(err, identity.ErrNoActiveSession) {
		return model.NewNoActiveSessionError().Message
	}

	var perr *identity.ProviderError
	if !errors.As(err, &perr) {
		return genericMessage
	}
	if msg, ok := table[perr.Code]; ok {
		return msg
	}
	if perr.Code == identity.CodeSessionExpired {
		return sessionExpiredMessage
	}
	if perr.Message != "" {
		return perr.Message
	}
	return genericMessage
}
