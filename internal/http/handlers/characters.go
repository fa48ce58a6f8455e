package handlers

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"storybook/internal/domain"
)

// maxCharacterEdge bounds stored reference images; provider requests don't
// need more resolution than this.
const maxCharacterEdge = 1024

const maxCharacterUpload = 20 << 20 // 20 MiB

type characterView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CharactersUpload accepts a multipart form with a name field and an image
// file, downscales the image, and stores it in the library.
func (a *App) CharactersUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxCharacterUpload); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is required")
		return
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported image format")
		return
	}

	normalized, err := encodeDownscaled(src)
	if err != nil {
		a.Logger.Error().Err(err).Msg("character image encode failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to process image")
		return
	}

	c := &domain.Character{
		ID:        uuid.NewString(),
		Name:      name,
		Image:     normalized,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Characters.Put(r.Context(), c); err != nil {
		a.Logger.Error().Err(err).Msg("character persist failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to save character")
		return
	}
	a.json(w, http.StatusCreated, characterView{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
}

func (a *App) CharactersList(w http.ResponseWriter, r *http.Request) {
	chars, err := a.Characters.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("character list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list characters")
		return
	}
	views := make([]characterView, 0, len(chars))
	for _, c := range chars {
		views = append(views, characterView{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt})
	}
	a.json(w, http.StatusOK, views)
}

// CharacterImage serves the stored reference image.
func (a *App) CharacterImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "character_id")
	chars, err := a.Characters.List(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("character list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load character")
		return
	}
	for _, c := range chars {
		if c.ID == id {
			w.Header().Set("Content-Type", http.DetectContentType(c.Image))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(c.Image)
			return
		}
	}
	a.error(w, http.StatusNotFound, "not_found", "character not found")
}

func (a *App) CharactersDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "character_id")
	if err := a.Characters.Delete(r.Context(), id); err != nil {
		a.notFoundOr500(w, err, "character")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// encodeDownscaled shrinks src so its longest edge is at most
// maxCharacterEdge and re-encodes it as PNG.
func encodeDownscaled(src image.Image) ([]byte, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxCharacterEdge || h > maxCharacterEdge {
		scale := float64(maxCharacterEdge) / float64(w)
		if h > w {
			scale = float64(maxCharacterEdge) / float64(h)
		}
		dw := int(float64(w) * scale)
		dh := int(float64(h) * scale)
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
