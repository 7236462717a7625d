package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamehub/internal/catalog"
	"github.com/hitoshi/gamehub/internal/model"
	"github.com/hitoshi/gamehub/internal/view"
)

// CatalogHandler はアプリカタログを表示するHTTPハンドラー。
type CatalogHandler struct {
	source catalog.Source
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(source catalog.Source) *CatalogHandler {
	return &CatalogHandler{source: source}
}

// Home はバナー、ハイライト、アプリ一覧を表示する。
// GET /
func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	apps := h.apps(r)
	view.Render(w, view.HomeTemplate, http.StatusOK, view.HomeParams{
		Page:       pageFor(r),
		Highlights: catalog.Highlights(apps, catalog.DefaultHighlightCount),
		Apps:       apps,
	})
}

// AllApps は全アプリを表示する。
// GET /allapps
func (h *CatalogHandler) AllApps(w http.ResponseWriter, r *http.Request) {
	view.Render(w, view.AllAppsTemplate, http.StatusOK, view.AllAppsParams{
		Page: pageFor(r),
		Apps: h.apps(r),
	})
}

// AppDetails は指定IDのアプリ詳細を表示する。
// IDが数値でない場合や該当アプリがない場合は「App not found」を表示する。
// GET /appDetails/{id}
func (h *CatalogHandler) AppDetails(w http.ResponseWriter, r *http.Request) {
	params := view.AppDetailsParams{Page: pageFor(r)}

	if id, ok := catalog.ParseID(chi.URLParam(r, "id")); ok {
		if app, found := catalog.FindByID(h.apps(r), id); found {
			params.App = app
		}
	}

	status := http.StatusOK
	if params.App == nil {
		status = http.StatusNotFound
	}
	view.Render(w, view.AppDetailsTemplate, status, params)
}

// apps はカタログを取得する。取得できない場合は空として扱い、ページは空状態で表示する。
func (h *CatalogHandler) apps(r *http.Request) []model.AppRecord {
	apps, err := h.source.FetchCatalog(r.Context())
	if err != nil {
		slog.Warn("failed to load catalog",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return apps
}
