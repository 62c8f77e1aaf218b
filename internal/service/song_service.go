package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/apperror"
	"github.com/afrocoder16/mkc-songbook/internal/cache"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
	"github.com/afrocoder16/mkc-songbook/internal/storage"
)

const songCacheTTL = 5 * time.Minute

// MediaUpload is a validated file ready for object storage.
type MediaUpload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// SongInput carries the song form fields plus the optional audio file.
type SongInput struct {
	ID        uint
	Title     string
	Lyrics    string
	Tempo     *int
	VideoLink string
	AlbumIDs  []uint
	Audio     *MediaUpload
}

// SearchResult is one page of song search results.
type SearchResult struct {
	Songs      []model.Song `json:"songs"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

var audioExtensions = map[string]string{
	"audio/mpeg": ".mp3",
	"audio/aac":  ".aac",
}

// SongService exposes songbook domain operations.
type SongService interface {
	Create(ctx context.Context, input SongInput) (*model.Song, error)
	Update(ctx context.Context, id uint, input SongInput) (*model.Song, error)
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*model.Song, error)
	OpenAudio(ctx context.Context, id uint) (io.ReadCloser, string, error)
	Search(ctx context.Context, params repository.SearchParams, userID uint) (*SearchResult, error)
}

type songService struct {
	songRepo    repository.SongRepository
	albumRepo   repository.AlbumRepository
	historyRepo repository.SearchHistoryRepository
	store       storage.ObjectStore
	cache       *cache.Client
}

// NewSongService builds a SongService.
func NewSongService(songRepo repository.SongRepository, albumRepo repository.AlbumRepository, historyRepo repository.SearchHistoryRepository, store storage.ObjectStore, cache *cache.Client) SongService {
	return &songService{
		songRepo:    songRepo,
		albumRepo:   albumRepo,
		historyRepo: historyRepo,
		store:       store,
		cache:       cache,
	}
}

func songCacheKey(id uint) string {
	return fmt.Sprintf("song:%d", id)
}

// Create validates the form, uploads the audio file if present and persists
// the song with its album memberships.
func (s *songService) Create(ctx context.Context, input SongInput) (*model.Song, error) {
	if err := validateSongInput(input, true); err != nil {
		return nil, err
	}

	if _, err := s.songRepo.FindByID(ctx, input.ID); err == nil {
		return nil, apperror.ClientFault("A song exists with the provided song number")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unexpected(fmt.Errorf("check song number: %w", err))
	}

	if err := s.checkAlbumsExist(ctx, input.AlbumIDs); err != nil {
		return nil, err
	}

	song := &model.Song{
		ID:        input.ID,
		Title:     strings.TrimSpace(input.Title),
		Lyrics:    input.Lyrics,
		Tempo:     input.Tempo,
		VideoLink: input.VideoLink,
	}

	if input.Audio != nil {
		key, err := s.uploadAudio(ctx, input.ID, input.Audio)
		if err != nil {
			return nil, err
		}
		song.AudioKey = key
	}

	if err := s.songRepo.Create(ctx, song, input.AlbumIDs); err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("create song: %w", err))
	}
	return song, nil
}

// Update rewrites the song's fields and album memberships; a new audio file
// replaces the stored one.
func (s *songService) Update(ctx context.Context, id uint, input SongInput) (*model.Song, error) {
	input.ID = id
	if err := validateSongInput(input, false); err != nil {
		return nil, err
	}

	song, err := s.songRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Song not found.")
		}
		return nil, apperror.Unexpected(fmt.Errorf("find song: %w", err))
	}

	if err := s.checkAlbumsExist(ctx, input.AlbumIDs); err != nil {
		return nil, err
	}

	song.Title = strings.TrimSpace(input.Title)
	song.Lyrics = input.Lyrics
	song.Tempo = input.Tempo
	song.VideoLink = input.VideoLink

	if input.Audio != nil {
		oldKey := song.AudioKey
		key, err := s.uploadAudio(ctx, id, input.Audio)
		if err != nil {
			return nil, err
		}
		song.AudioKey = key
		if oldKey != "" {
			if err := s.store.Delete(ctx, oldKey); err != nil {
				log.Printf("song: delete replaced audio %s: %v", oldKey, err)
			}
		}
	}

	song.Albums = nil
	if err := s.songRepo.Update(ctx, song, input.AlbumIDs); err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("update song: %w", err))
	}
	_ = s.cache.Delete(ctx, songCacheKey(id))
	return song, nil
}

// Delete removes the song, its track rows and its stored audio.
func (s *songService) Delete(ctx context.Context, id uint) error {
	song, err := s.songRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("Song not found.")
		}
		return apperror.Unexpected(fmt.Errorf("find song: %w", err))
	}

	deleted, err := s.songRepo.Delete(ctx, id)
	if err != nil {
		return apperror.Unexpected(fmt.Errorf("delete song: %w", err))
	}
	if !deleted {
		return apperror.NotFound("Song not found.")
	}

	if song.AudioKey != "" {
		// best effort, the record is already gone
		if err := s.store.Delete(ctx, song.AudioKey); err != nil {
			log.Printf("song: delete audio %s: %v", song.AudioKey, err)
		}
	}
	_ = s.cache.Delete(ctx, songCacheKey(id))
	return nil
}

// Get returns one song, served from the cache when possible.
func (s *songService) Get(ctx context.Context, id uint) (*model.Song, error) {
	if data, _ := s.cache.Get(ctx, songCacheKey(id)); data != nil {
		var cached model.Song
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	song, err := s.songRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Song not found.")
		}
		return nil, apperror.Unexpected(fmt.Errorf("find song: %w", err))
	}

	if payload, err := json.Marshal(song); err == nil {
		_ = s.cache.Set(ctx, songCacheKey(id), payload, songCacheTTL)
	}
	return song, nil
}

// OpenAudio streams the stored audio file, returning its content type.
func (s *songService) OpenAudio(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	song, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if song.AudioKey == "" {
		return nil, "", apperror.NotFound("This song has no audio file.")
	}
	reader, err := s.store.Download(ctx, song.AudioKey)
	if err != nil {
		return nil, "", apperror.Unexpected(fmt.Errorf("open audio: %w", err))
	}
	return reader, contentTypeForKey(song.AudioKey), nil
}

// Search runs the paginated song query. An authenticated caller's query is
// appended to their search history in the background; recording failures
// never affect the response.
func (s *songService) Search(ctx context.Context, params repository.SearchParams, userID uint) (*SearchResult, error) {
	songs, total, err := s.songRepo.Search(ctx, params)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("search songs: %w", err))
	}

	if userID != 0 && params.Query != "" {
		go s.recordSearch(userID, params)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	totalPages := int((total + repository.PageSize - 1) / repository.PageSize)
	return &SearchResult{
		Songs:      songs,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (s *songService) recordSearch(userID uint, params repository.SearchParams) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := &model.SearchHistory{UserID: userID, Query: params.Query, Type: params.Type}
	if err := s.historyRepo.Create(ctx, record); err != nil {
		log.Printf("song: record search history for user %d: %v", userID, err)
	}
}

func (s *songService) uploadAudio(ctx context.Context, songID uint, upload *MediaUpload) (string, error) {
	ext, ok := audioExtensions[upload.ContentType]
	if !ok {
		return "", apperror.ClientFault("Unsupported file type")
	}
	key := fmt.Sprintf("audio/%d-%s%s", songID, uuid.New().String(), ext)
	if err := s.store.Upload(ctx, key, upload.Reader, upload.Size, upload.ContentType); err != nil {
		return "", apperror.Unexpected(fmt.Errorf("upload audio: %w", err))
	}
	return key, nil
}

// checkAlbumsExist validates every referenced album, mirroring the per-id
// message the song form expects.
func (s *songService) checkAlbumsExist(ctx context.Context, albumIDs []uint) error {
	for _, albumID := range albumIDs {
		if _, err := s.albumRepo.FindByID(ctx, albumID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ClientFault(fmt.Sprintf("The album with id %q doesn't exist.", fmt.Sprint(albumID)))
			}
			return apperror.Unexpected(fmt.Errorf("check album %d: %w", albumID, err))
		}
	}
	return nil
}

func contentTypeForKey(key string) string {
	switch path.Ext(key) {
	case ".mp3":
		return "audio/mpeg"
	case ".aac":
		return "audio/aac"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

func validateSongInput(input SongInput, requireID bool) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.Title) == "" {
		fields["titleMessage"] = "Title is required."
	}
	if requireID && input.ID == 0 {
		fields["songNumberMessage"] = "Please enter a valid song number."
	}
	if strings.TrimSpace(input.Lyrics) == "" {
		fields["lyricsMessage"] = "Lyrics is required."
	}
	if input.VideoLink != "" && !isYoutubeLink(input.VideoLink) {
		fields["videoLinkMessage"] = "Please enter a valid youtube link."
	}
	if input.Tempo != nil && *input.Tempo < model.MinTempo {
		fields["tempoMessage"] = "Please enter a valid tempo."
	}
	if len(fields) > 0 {
		return apperror.FieldFaults(fields)
	}
	return nil
}

func isYoutubeLink(link string) bool {
	return strings.Contains(link, "youtu.be") || strings.Contains(link, "youtube.com")
}
