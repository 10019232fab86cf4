package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/platform/requestctx"
	"github.com/louisbranch/oilandrope/internal/services/api/routepath"
	"github.com/louisbranch/oilandrope/internal/services/common"
)

// multipartOverhead leaves room for the form fields around the file.
const multipartOverhead = 1 << 20

type trackRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
	Public      *bool  `json:"public"`
	File        string `json:"file"`
}

func (req trackRequest) input() common.TrackInput {
	return common.TrackInput{
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
		File:        req.File,
	}
}

type voteResponse struct {
	ID string `json:"id"`
}

func (h *handler) registerCommonRoutes(mux *http.ServeMux) {
	h.handle(mux, http.MethodGet, routepath.Tracks, accessUser, h.handleListTracks)
	h.handle(mux, http.MethodPost, routepath.Tracks, accessUser, h.handleCreateTrack)
	h.handle(mux, http.MethodGet, routepath.Track, accessUser, h.handleGetTrack)
	h.handle(mux, http.MethodPut, routepath.Track, accessUser, h.handleUpdateTrack)
	h.handle(mux, http.MethodDelete, routepath.Track, accessUser, h.handleDeleteTrack)
	h.handle(mux, http.MethodGet, routepath.Vote, accessUser, h.handleVote)
}

func (h *handler) handleListTracks(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tracks, err := h.store.ListTracks(r.Context(), caller(r).UserID, page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, mapPage(tracks, toTrackResource))
}

// loadTrack hides private tracks from everyone but their owner and staff.
func (h *handler) loadTrack(ctx context.Context, c requestctx.Caller, trackID string) (common.Track, error) {
	t, err := h.store.GetTrack(ctx, trackID)
	if err != nil {
		return common.Track{}, err
	}
	if !t.Public && !t.CanEdit(c.UserID, c.IsAdmin()) {
		return common.Track{}, notFound()
	}
	return t, nil
}

func (h *handler) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	t, err := h.loadTrack(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toTrackResource(t))
}

// handleCreateTrack accepts either a JSON body referencing an existing file
// or a multipart form carrying the audio upload in "file".
func (h *handler) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	if isMultipart(r) {
		h.createTrackUpload(w, r, c)
		return
	}
	var req trackRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := common.CreateTrack(req.input(), c.UserID, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutTrack(r.Context(), t); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toTrackResource(t))
}

func (h *handler) createTrackUpload(w http.ResponseWriter, r *http.Request, c requestctx.Caller) {
	r.Body = http.MaxBytesReader(w, r.Body, common.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(common.MaxUploadSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, common.ValidateFileSize(tooLarge.Limit+1))
			return
		}
		h.fail(w, r, apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument, "file is required",
			map[string]string{"Field": "file"}, err))
		return
	}
	defer file.Close()
	if err := common.ValidateMusicFile(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
		h.fail(w, r, err)
		return
	}

	input := common.TrackInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if raw := strings.TrimSpace(r.FormValue("public")); raw != "" {
		public, err := strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument, "public must be a boolean",
				map[string]string{"Field": "public"}, err))
			return
		}
		input.Public = &public
	}
	t, err := common.CreateTrack(input, c.UserID, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t.File = common.UploadPath("common", "track", t.ID, header.Filename, t.CreatedAt)
	if err := h.saveUpload(t.File, file); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutTrack(r.Context(), t); err != nil {
		_ = os.Remove(filepath.Join(h.mediaDir, filepath.FromSlash(t.File)))
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, toTrackResource(t))
}

// saveUpload writes src under the media directory at the slash-separated
// relative path.
func (h *handler) saveUpload(relative string, src multipart.File) error {
	if h.mediaDir == "" {
		return fmt.Errorf("media directory is not configured")
	}
	dst := filepath.Join(h.mediaDir, filepath.FromSlash(relative))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	return out.Close()
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func (h *handler) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodePayload(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c := caller(r)
	current, err := h.loadTrack(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !current.CanEdit(c.UserID, c.IsAdmin()) {
		h.fail(w, r, errForbidden)
		return
	}
	updated, err := common.UpdateTrack(current, req.input(), h.clock())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutTrack(r.Context(), updated); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toTrackResource(updated))
}

func (h *handler) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	current, err := h.loadTrack(r.Context(), c, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !current.CanEdit(c.UserID, c.IsAdmin()) {
		h.fail(w, r, errForbidden)
		return
	}
	if err := h.store.DeleteTrack(r.Context(), current.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleVote casts the caller's vote on a record. Anything but a true
// is_positive counts as a negative vote.
func (h *handler) handleVote(w http.ResponseWriter, r *http.Request) {
	kind, err := common.NormalizeTargetKind(r.PathValue("kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	targetID := r.PathValue("id")
	exists, err := h.store.TargetExists(r.Context(), kind, targetID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !exists {
		h.fail(w, r, common.ErrUnknownTarget)
		return
	}
	isPositive, _ := strconv.ParseBool(r.URL.Query().Get("is_positive"))

	userID := caller(r).UserID
	var existing *common.Vote
	current, err := h.store.GetVote(r.Context(), userID, kind, targetID)
	switch {
	case err == nil:
		existing = &current
	case !isNotFound(err):
		h.fail(w, r, err)
		return
	}
	vote, err := common.CastVote(existing, userID, kind, targetID, isPositive, h.now, h.idGenerator)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.PutVote(r.Context(), vote); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, voteResponse{ID: vote.ID})
}
