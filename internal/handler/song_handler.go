package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/auth"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
	"github.com/afrocoder16/mkc-songbook/internal/service"
)

// maxAudioSize caps uploaded audio files at 50 MiB, matching the song form.
const maxAudioSize = 50 << 20

var allowedAudioTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/aac":  true,
}

// SongHandler handles the song endpoints.
type SongHandler struct {
	songService service.SongService
}

// NewSongHandler creates a new song handler.
func NewSongHandler(songService service.SongService) *SongHandler {
	return &SongHandler{songService: songService}
}

// Search godoc
// @Summary List or search songs
// @Tags songs
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param q query string false "Search text"
// @Param type query string false "Search type: title, lyrics or number"
// @Param sortBy query string false "Sort key: title, number or newest"
// @Success 200 {object} service.SearchResult
// @Failure 500 {object} map[string]interface{}
// @Router /song [get]
func (h *SongHandler) Search(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	params := repository.SearchParams{
		Query:  c.QueryParam("q"),
		Type:   c.QueryParam("type"),
		SortBy: c.QueryParam("sortBy"),
		Page:   page,
	}

	var userID uint
	if identity := auth.IdentityFrom(c); identity != nil {
		userID = identity.UserID
	}

	result, err := h.songService.Search(c.Request().Context(), params, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Get godoc
// @Summary Get a song by its number
// @Tags songs
// @Produce json
// @Param id path int true "Song number"
// @Success 200 {object} model.Song
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /song/{id} [get]
func (h *SongHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	song, err := h.songService.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, song)
}

// GetAudio godoc
// @Summary Stream the audio file of a song
// @Tags songs
// @Produce octet-stream
// @Param id path int true "Song number"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{}
// @Router /song/{id}/audio [get]
func (h *SongHandler) GetAudio(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	reader, contentType, err := h.songService.OpenAudio(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer reader.Close()
	return c.Stream(http.StatusOK, contentType, reader)
}

// Create godoc
// @Summary Upload a new song
// @Tags songs
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id formData int true "Song number"
// @Param title formData string true "Song title"
// @Param lyrics formData string true "Lyrics"
// @Param tempo formData int false "Tempo in BPM"
// @Param video-link formData string false "Youtube link"
// @Param albums formData string false "Comma separated album numbers"
// @Param audio formData file false "Audio file (mp3 or aac, max 50 MiB)"
// @Success 201 {object} model.Song
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /song [post]
func (h *SongHandler) Create(c echo.Context) error {
	input, cleanup, err := parseSongForm(c)
	if err != nil {
		return err
	}
	defer cleanup()

	song, err := h.songService.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, song)
}

// Update godoc
// @Summary Edit an existing song
// @Tags songs
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song number"
// @Success 200 {object} model.Song
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /song/{id} [put]
func (h *SongHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	input, cleanup, err := parseSongForm(c)
	if err != nil {
		return err
	}
	defer cleanup()

	song, err := h.songService.Update(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, song)
}

// Delete godoc
// @Summary Delete a song
// @Tags songs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Song number"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /song/{id} [delete]
func (h *SongHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if err := h.songService.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func parseIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperror.ClientFault("Please enter a valid song number.")
	}
	return uint(id), nil
}

// parseSongForm reads the multipart song form. The returned cleanup closes
// the uploaded file and must be called even on service errors.
func parseSongForm(c echo.Context) (service.SongInput, func(), error) {
	cleanup := func() {}
	input := service.SongInput{
		Title:     c.FormValue("title"),
		Lyrics:    c.FormValue("lyrics"),
		VideoLink: c.FormValue("video-link"),
	}

	if v := c.FormValue("id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return input, cleanup, apperror.FieldFaults(map[string]string{
				"songNumberMessage": "Please enter a valid song number.",
			})
		}
		input.ID = uint(id)
	}

	if v := c.FormValue("tempo"); v != "" {
		tempo, err := strconv.Atoi(v)
		if err != nil {
			return input, cleanup, apperror.FieldFaults(map[string]string{
				"tempoMessage": "Please enter a valid tempo.",
			})
		}
		input.Tempo = &tempo
	}

	albumIDs, err := parseUintList(c.FormValue("albums"))
	if err != nil {
		return input, cleanup, apperror.ClientFault("Please enter valid album numbers.")
	}
	input.AlbumIDs = albumIDs

	upload, closeUpload, err := openUpload(c, "audio", maxAudioSize, allowedAudioTypes,
		"File is too large. Maximum size is 50 MBs.")
	if err != nil {
		return input, cleanup, err
	}
	if upload != nil {
		input.Audio = upload
		cleanup = closeUpload
	}
	return input, cleanup, nil
}

// openUpload fetches an optional multipart file, enforcing the size cap and
// allowed content types. It returns nil when the field is absent.
func openUpload(c echo.Context, field string, maxSize int64, allowedTypes map[string]bool, sizeMessage string) (*service.MediaUpload, func(), error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		// absent file field, or no multipart body at all
		return nil, nil, nil
	}

	if fileHeader.Size > maxSize {
		return nil, nil, apperror.ClientFault(sizeMessage)
	}
	contentType := fileHeader.Header.Get(echo.HeaderContentType)
	if !allowedTypes[contentType] {
		return nil, nil, apperror.ClientFault("Unsupported file type")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, nil, apperror.Unexpected(fmt.Errorf("open uploaded file: %w", err))
	}
	upload := &service.MediaUpload{
		Reader:      src,
		Size:        fileHeader.Size,
		ContentType: contentType,
	}
	return upload, func() { src.Close() }, nil
}

func parseUintList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
