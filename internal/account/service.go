package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gamehub/internal/guard"
	"github.com/hitoshi/gamehub/internal/identity"
	"github.com/hitoshi/gamehub/internal/model"
)

// 認証試行の種別（メトリクスのラベル）。
const (
	OperationSignIn   = "sign_in"
	OperationRegister = "register"
)

// Session はフォーム処理が必要とするSession Contextの操作。
type Session interface {
	SignIn(ctx context.Context, email, password string) (*model.UserRecord, error)
	Register(ctx context.Context, email, password string) (*model.UserRecord, error)
	UpdateProfile(ctx context.Context, update identity.ProfileUpdate) error
	SignOut(ctx context.Context) error
}

// AttemptRecorder は認証試行の結果を記録するインターフェース。
type AttemptRecorder interface {
	RecordAuthAttempt(operation, result string)
}

// Service はログイン・登録・ログアウトのフローを実行する。
type Service struct {
	recorder AttemptRecorder
}

// NewService は新しいServiceを生成する。recorderはnilでもよい。
func NewService(recorder AttemptRecorder) *Service {
	return &Service{recorder: recorder}
}

// Login はフォームを検証してサインインし、ログイン後の遷移先を返す。
// 遷移先は元のパス（From）が安全な場合はそのパス、それ以外は "/"。
func (s *Service) Login(ctx context.Context, sess Session, form LoginForm) (string, error) {
	form.Normalize()

	// 1. 入力検証
	if err := form.Validate(); err != nil {
		return "", err
	}

	// 2. サインイン
	user, err := sess.SignIn(ctx, form.Email, form.Password)
	s.record(OperationSignIn, err)
	if err != nil {
		slog.Info("ログインに失敗しました",
			slog.String("code", string(identity.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("sign in: %w", err)
	}

	slog.Info("ログインしました", slog.String("uid", user.UID))

	// 3. NavigationIntentを消費
	return guard.SafeRedirectTarget(form.From), nil
}

// Register はフォームを検証してアカウントを作成し、表示名と写真URLを設定する。
// 成功後の遷移先はログインページ（RegistrationNoticeを表示する）。
func (s *Service) Register(ctx context.Context, sess Session, form RegistrationForm) error {
	form.Normalize()

	// 1. 入力検証（失敗時はIdPを呼び出さない）
	if err := form.Validate(); err != nil {
		return err
	}

	// 2. アカウント作成
	user, err := sess.Register(ctx, form.Email, form.Password)
	s.record(OperationRegister, err)
	if err != nil {
		slog.Info("登録に失敗しました",
			slog.String("code", string(identity.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("register: %w", err)
	}

	// 3. プロフィール設定（写真URLが空の場合は削除を指示する）
	name, photo := form.Name, form.PhotoURL
	if err := sess.UpdateProfile(ctx, identity.ProfileUpdate{DisplayName: &name, PhotoURL: &photo}); err != nil {
		slog.Warn("登録後のプロフィール設定に失敗しました",
			slog.String("uid", user.UID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("update profile: %w", err)
	}

	slog.Info("ユーザーを登録しました", slog.String("uid", user.UID))
	return nil
}

// Logout はサインアウトする。サインインしていない場合も成功として扱う。
func (s *Service) Logout(ctx context.Context, sess Session) error {
	if err := sess.SignOut(ctx); err != nil {
		slog.Error("ログアウトに失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (s *Service) record(operation string, err error) {
	if s.recorder == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(identity.CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	s.recorder.RecordAuthAttempt(operation, result)
}
