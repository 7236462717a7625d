// Package account はログイン・登録・ログアウトのフォーム処理を提供する。
package account

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/hitoshi/gamehub/internal/model"
)

// MinNameLength は登録時の表示名の最小文字数。
const MinNameLength = 3

// LoginForm はログインフォームの入力値。
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// From はログイン後に戻る元のパス（NavigationIntent）。
	From string `json:"from"`
}

// Normalize は前後の空白を取り除く。パスワードは入力どおりに扱う。
func (f *LoginForm) Normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.From = strings.TrimSpace(f.From)
}

// Validate は必須項目のみを検証する。形式の検証はIdPに委ねる。
func (f LoginForm) Validate() error {
	return toValidationError(validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required.Error("Email is required")),
		validation.Field(&f.Password, validation.Required.Error("Password is required")),
	))
}

// RegistrationForm は登録フォームの入力値。
type RegistrationForm struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize は前後の空白を取り除く。パスワードは入力どおりに扱う。
func (f *RegistrationForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.PhotoURL = strings.TrimSpace(f.PhotoURL)
	f.Email = strings.TrimSpace(f.Email)
}

// Validate は表示名の長さと写真URLの形式を検証する。
// ここで失敗した場合、IdPは呼び出されない。
func (f RegistrationForm) Validate() error {
	return toValidationError(validation.ValidateStruct(&f,
		validation.Field(&f.Name,
			validation.Required.Error("Name should be at least 3 characters long"),
			validation.RuneLength(MinNameLength, 0).Error("Name should be at least 3 characters long"),
		),
		validation.Field(&f.PhotoURL, is.URL.Error("Photo URL must be a valid URL")),
		validation.Field(&f.Email, validation.Required.Error("Email is required")),
		validation.Field(&f.Password, validation.Required.Error("Password is required")),
	))
}

// toValidationError はozzo-validationのエラーをmodel.ValidationErrorに変換する。
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		fields[field] = fieldErr.Error()
	}
	return &model.ValidationError{Fields: fields}
}
