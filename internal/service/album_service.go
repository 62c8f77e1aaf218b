package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
	"github.com/afrocoder16/mkc-songbook/internal/storage"
)

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
}

// AlbumInput carries the album form fields plus the optional cover image.
// SongIDs is the ordered track list.
type AlbumInput struct {
	ID                  uint
	Title               string
	YoutubePlaylistLink string
	SongIDs             []uint
	Cover               *MediaUpload
}

// AlbumService exposes album domain operations.
type AlbumService interface {
	Create(ctx context.Context, input AlbumInput) (*model.Album, error)
	Update(ctx context.Context, id uint, input AlbumInput) (*model.Album, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*model.Album, error)
	List(ctx context.Context) ([]model.Album, error)
	OpenCover(ctx context.Context, id uint) (io.ReadCloser, string, error)
}

type albumService struct {
	albumRepo repository.AlbumRepository
	songRepo  repository.SongRepository
	store     storage.ObjectStore
}

// NewAlbumService builds an AlbumService.
func NewAlbumService(albumRepo repository.AlbumRepository, songRepo repository.SongRepository, store storage.ObjectStore) AlbumService {
	return &albumService{
		albumRepo: albumRepo,
		songRepo:  songRepo,
		store:     store,
	}
}

// Create validates the form and track list, uploads the cover if present and
// persists the album.
func (s *albumService) Create(ctx context.Context, input AlbumInput) (*model.Album, error) {
	if err := s.validateAlbumInput(ctx, input, true); err != nil {
		return nil, err
	}

	if _, err := s.albumRepo.FindByID(ctx, input.ID); err == nil {
		return nil, apperror.ClientFault("An album exists with the provided album number")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unexpected(fmt.Errorf("check album number: %w", err))
	}

	album := &model.Album{
		ID:                  input.ID,
		Title:               strings.TrimSpace(input.Title),
		YoutubePlaylistLink: input.YoutubePlaylistLink,
	}

	if input.Cover != nil {
		key, err := s.uploadCover(ctx, input.ID, input.Cover)
		if err != nil {
			return nil, err
		}
		album.CoverKey = key
	}

	if err := s.albumRepo.Create(ctx, album, input.SongIDs); err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("create album: %w", err))
	}
	return album, nil
}

// Update rewrites the album and its track list; a new cover replaces the
// stored one.
func (s *albumService) Update(ctx context.Context, id uint, input AlbumInput) (*model.Album, error) {
	input.ID = id
	if err := s.validateAlbumInput(ctx, input, false); err != nil {
		return nil, err
	}

	album, err := s.albumRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Album not found.")
		}
		return nil, apperror.Unexpected(fmt.Errorf("find album: %w", err))
	}

	album.Title = strings.TrimSpace(input.Title)
	album.YoutubePlaylistLink = input.YoutubePlaylistLink
	album.Songs = nil

	if input.Cover != nil {
		oldKey := album.CoverKey
		key, err := s.uploadCover(ctx, id, input.Cover)
		if err != nil {
			return nil, err
		}
		album.CoverKey = key
		if oldKey != "" {
			if err := s.store.Delete(ctx, oldKey); err != nil {
				log.Printf("album: delete replaced cover %s: %v", oldKey, err)
			}
		}
	}

	if err := s.albumRepo.Update(ctx, album, input.SongIDs); err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("update album: %w", err))
	}
	return album, nil
}

// Delete removes the album, its track rows and its stored cover.
func (s *albumService) Delete(ctx context.Context, id uint) error {
	album, err := s.albumRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Album not found.")
		}
		return apperror.Unexpected(fmt.Errorf("find album: %w", err))
	}

	deleted, err := s.albumRepo.Delete(ctx, id)
	if err != nil {
		return apperror.Unexpected(fmt.Errorf("delete album: %w", err))
	}
	if !deleted {
		return apperror.NotFound("Album not found.")
	}

	if album.CoverKey != "" {
		if err := s.store.Delete(ctx, album.CoverKey); err != nil {
			log.Printf("album: delete cover %s: %v", album.CoverKey, err)
		}
	}
	return nil
}

// Get loads the album with its songs in track order.
func (s *albumService) Get(ctx context.Context, id uint) (*model.Album, error) {
	album, err := s.albumRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Album not found.")
		}
		return nil, apperror.Unexpected(fmt.Errorf("find album: %w", err))
	}
	return album, nil
}

func (s *albumService) List(ctx context.Context) ([]model.Album, error) {
	albums, err := s.albumRepo.List(ctx)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list albums: %w", err))
	}
	return albums, nil
}

// OpenCover streams the stored cover image, returning its content type.
func (s *albumService) OpenCover(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	album, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if album.CoverKey == "" {
		return nil, "", apperror.NotFound("This album has no cover image.")
	}
	reader, err := s.store.Download(ctx, album.CoverKey)
	if err != nil {
		return nil, "", apperror.Unexpected(fmt.Errorf("open cover: %w", err))
	}
	return reader, contentTypeForKey(album.CoverKey), nil
}

func (s *albumService) uploadCover(ctx context.Context, albumID uint, upload *MediaUpload) (string, error) {
	ext, ok := coverExtensions[upload.ContentType]
	if !ok {
		return "", apperror.ClientFault("Unsupported file type.")
	}
	key := fmt.Sprintf("covers/%d-%s%s", albumID, uuid.New().String(), ext)
	if err := s.store.Upload(ctx, key, upload.Reader, upload.Size, upload.ContentType); err != nil {
		return "", apperror.Unexpected(fmt.Errorf("upload cover: %w", err))
	}
	return key, nil
}

func (s *albumService) validateAlbumInput(ctx context.Context, input AlbumInput, requireID bool) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		fields["titleMessage"] = "Title is required."
	}
	if requireID && input.ID == 0 {
		fields["albumNumberMessage"] = "Please enter a valid album number."
	}
	if input.YoutubePlaylistLink != "" && !isYoutubeLink(input.YoutubePlaylistLink) {
		fields["playlistLinkMessage"] = "Please enter a valid youtube link."
	}
	if len(input.SongIDs) == 0 {
		fields["trackMessage"] = "Please add a song."
	}
	if len(fields) > 0 {
		return apperror.FieldFaults(fields)
	}

	seen := make(map[uint]int, len(input.SongIDs))
	for i, songID := range input.SongIDs {
		if at, ok := seen[songID]; ok {
			return apperror.ClientFault(fmt.Sprintf("Song is already in the album at track #%d", at+1))
		}
		seen[songID] = i

		if _, err := s.songRepo.FindByID(ctx, songID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ClientFault(fmt.Sprintf("The song with id %q doesn't exist.", fmt.Sprint(songID)))
			}
			return apperror.Unexpected(fmt.Errorf("check song %d: %w", songID, err))
		}
	}
	return nil
}
