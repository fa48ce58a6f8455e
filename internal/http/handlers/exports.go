package handlers

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"storybook/pkg/zip"
)

type exportResponse struct {
	Key       string `json:"key"`
	DriveLink string `json:"drive_link,omitempty"`
}

// ExportVideo composites the story into an MP4, stores it, and uploads to
// Drive when an account is connected. Missing media is generated first, so
// the call can take a while.
func (a *App) ExportVideo(w http.ResponseWriter, r *http.Request) {
	c, err := a.controller(r.Context(), chi.URLParam(r, "story_id"))
	if err != nil {
		a.notFoundOr500(w, err, "story")
		return
	}
	ctx := r.Context()
	c.GenerateAll(ctx)
	st := c.Story()

	tmp, err := os.CreateTemp("", "storybook-*.mp4")
	if err != nil {
		a.Logger.Error().Err(err).Msg("export temp file failed")
		a.error(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := a.Video.Export(ctx, st, tmpPath, nil); err != nil {
		a.Logger.Error().Err(err).Msg("video export failed")
		a.error(w, http.StatusInternalServerError, "export_failed", "video export failed")
		return
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		a.Logger.Error().Err(err).Msg("read exported video failed")
		a.error(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}

	key, err := a.Store.Write(ctx, filepath.Join(st.ID, "story.mp4"), data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("store exported video failed")
		a.error(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}

	resp := exportResponse{Key: key}
	resp.DriveLink = a.maybeUpload(ctx, st.Title+".mp4", "video/mp4", data)
	a.json(w, http.StatusOK, resp)
}

// ExportPDF lays the story out as a PDF and stores it.
func (a *App) ExportPDF(w http.ResponseWriter, r *http.Request) {
	c, err := a.controller(r.Context(), chi.URLParam(r, "story_id"))
	if err != nil {
		a.notFoundOr500(w, err, "story")
		return
	}
	ctx := r.Context()
	c.GenerateAll(ctx)
	st := c.Story()

	data, err := a.PDF.Export(st)
	if err != nil {
		a.Logger.Error().Err(err).Msg("pdf export failed")
		a.error(w, http.StatusInternalServerError, "export_failed", "pdf export failed")
		return
	}
	key, err := a.Store.Write(ctx, filepath.Join(st.ID, "story.pdf"), data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("store exported pdf failed")
		a.error(w, http.StatusInternalServerError, "internal", "export failed")
		return
	}

	resp := exportResponse{Key: key}
	resp.DriveLink = a.maybeUpload(ctx, st.Title+".pdf", "application/pdf", data)
	a.json(w, http.StatusOK, resp)
}

// ExportDownload streams a previously exported artifact.
func (a *App) ExportDownload(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "story_id")
	name := chi.URLParam(r, "artifact")
	switch name {
	case "story.mp4", "story.pdf":
	default:
		a.error(w, http.StatusNotFound, "not_found", "unknown artifact")
		return
	}
	data, err := a.Store.Read(r.Context(), filepath.Join(storyID, name))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact not exported yet")
		return
	}
	mime := "video/mp4"
	if name == "story.pdf" {
		mime = "application/pdf"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportBundle zips whatever artifacts exist for the story into one
// download.
func (a *App) ExportBundle(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "story_id")
	var assets []zip.Asset
	for _, name := range []string{"story.mp4", "story.pdf"} {
		data, err := a.Store.Read(r.Context(), filepath.Join(storyID, name))
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{Filename: name, Data: data})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no exported artifacts for story")
		return
	}
	archive := zip.ArchiveAssets(assets)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+storyID+".zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

// maybeUpload pushes the artifact to Drive when connected. Failures are
// logged and swallowed: cloud upload never blocks a local export.
func (a *App) maybeUpload(ctx context.Context, name, mime string, data []byte) string {
	if a.Drive == nil || !a.Drive.IsConnected(ctx) {
		return ""
	}
	link, err := a.Drive.Upload(ctx, name, mime, bytes.NewReader(data))
	if err != nil {
		a.Logger.Warn().Err(err).Str("name", name).Msg("drive upload failed")
		return ""
	}
	return link
}
