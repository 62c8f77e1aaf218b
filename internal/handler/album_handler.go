package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/service"
)

// maxCoverSize caps uploaded cover images at 30 MiB, matching the album form.
const maxCoverSize = 30 << 20

var allowedCoverTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// AlbumHandler handles the album endpoints.
type AlbumHandler struct {
	albumService service.AlbumService
}

// NewAlbumHandler creates a new album handler.
func NewAlbumHandler(albumService service.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

// List godoc
// @Summary List all albums
// @Tags albums
// @Produce json
// @Success 200 {array} model.Album
// @Failure 500 {object} map[string]interface{}
// @Router /album [get]
func (h *AlbumHandler) List(c echo.Context) error {
	albums, err := h.albumService.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, albums)
}

// Get godoc
// @Summary Get an album with its tracks in order
// @Tags albums
// @Produce json
// @Param id path int true "Album number"
// @Success 200 {object} model.Album
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /album/{id} [get]
func (h *AlbumHandler) Get(c echo.Context) error {
	id, err := parseAlbumIDParam(c)
	if err != nil {
		return err
	}
	album, err := h.albumService.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, album)
}

// GetCover godoc
// @Summary Stream the cover image of an album
// @Tags albums
// @Produce octet-stream
// @Param id path int true "Album number"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{}
// @Router /album/{id}/cover [get]
func (h *AlbumHandler) GetCover(c echo.Context) error {
	id, err := parseAlbumIDParam(c)
	if err != nil {
		return err
	}
	reader, contentType, err := h.albumService.OpenCover(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer reader.Close()
	return c.Stream(http.StatusOK, contentType, reader)
}

// Create godoc
// @Summary Upload a new album
// @Tags albums
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id formData int true "Album number"
// @Param title formData string true "Album title"
// @Param youtube_playlist_link formData string false "Youtube playlist link"
// @Param songs formData string true "Song numbers in track order (repeated field)"
// @Param cover formData file false "Cover image (jpeg or png, max 30 MiB)"
// @Success 201 {object} model.Album
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /album [post]
func (h *AlbumHandler) Create(c echo.Context) error {
	input, cleanup, err := parseAlbumForm(c)
	if err != nil {
		return err
	}
	defer cleanup()

	album, err := h.albumService.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, album)
}

// Update godoc
// @Summary Edit an existing album
// @Tags albums
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Album number"
// @Success 200 {object} model.Album
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /album/{id} [put]
func (h *AlbumHandler) Update(c echo.Context) error {
	id, err := parseAlbumIDParam(c)
	if err != nil {
		return err
	}
	input, cleanup, err := parseAlbumForm(c)
	if err != nil {
		return err
	}
	defer cleanup()

	album, err := h.albumService.Update(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, album)
}

// Delete godoc
// @Summary Delete an album
// @Tags albums
// @Produce json
// @Security BearerAuth
// @Param id path int true "Album number"
// @Success 200 {object} map[string]bool
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /album/{id} [delete]
func (h *AlbumHandler) Delete(c echo.Context) error {
	id, err := parseAlbumIDParam(c)
	if err != nil {
		return err
	}
	if err := h.albumService.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func parseAlbumIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperror.ClientFault("Please enter a valid album number.")
	}
	return uint(id), nil
}

// parseAlbumForm reads the multipart album form. The "songs" field repeats
// once per track, in order.
func parseAlbumForm(c echo.Context) (service.AlbumInput, func(), error) {
	cleanup := func() {}
	input := service.AlbumInput{
		Title:               c.FormValue("title"),
		YoutubePlaylistLink: c.FormValue("youtube_playlist_link"),
	}

	if v := c.FormValue("id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return input, cleanup, apperror.FieldFaults(map[string]string{
				"albumNumberMessage": "Please enter a valid album number.",
			})
		}
		input.ID = uint(id)
	}

	params, err := c.FormParams()
	if err != nil {
		return input, cleanup, apperror.ClientFault("Invalid request body.")
	}
	for _, raw := range params["songs"] {
		songID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return input, cleanup, apperror.ClientFault("Please enter valid song numbers.")
		}
		input.SongIDs = append(input.SongIDs, uint(songID))
	}

	upload, closeUpload, err := openUpload(c, "cover", maxCoverSize, allowedCoverTypes,
		"File is too large. Maximum size is 30 MBs.")
	if err != nil {
		return input, cleanup, err
	}
	if upload != nil {
		input.Cover = upload
		cleanup = closeUpload
	}
	return input, cleanup, nil
}
