package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/gamehub/internal/model"
)

// ErrorResponseBody は/api/ 配下で返すエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードごとのHTTPステータス。
var statusByCode = map[string]int{
	model.ErrCodeNoActiveSession: http.StatusUnauthorized,
	model.ErrCodeRateLimited:     http.StatusTooManyRequests,
	model.ErrCodeInternal:        http.StatusInternalServerError,
}

// StatusForError はAPIErrorに対応するHTTPステータスを返す。
// 未知のコードは500として扱う。
func StatusForError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse はAPIErrorを統一フォーマットで書き込む。
// ステータスコードはエラーコードから決まる。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(StatusForError(apiErr))
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部エラーを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
