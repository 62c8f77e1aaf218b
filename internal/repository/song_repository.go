package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/model"
)

// PageSize is the number of songs per search result page.
const PageSize = 20

// Search type filters understood by the song search endpoint.
const (
	SearchTypeTitle  = "title"
	SearchTypeLyrics = "lyrics"
	SearchTypeNumber = "number"
)

// SearchParams carries the song search query contract: free text, optional
// type filter, sort key and 1-based page.
type SearchParams struct {
	Query  string
	Type   string
	SortBy string
	Page   int
}

// sortColumns whitelists sort keys so caller input never reaches the ORDER BY
// clause directly.
var sortColumns = map[string]string{
	"title":  "title ASC",
	"number": "id ASC",
	"newest": "created_at DESC",
}

// SongRepository defines song persistence operations.
type SongRepository interface {
	Create(ctx context.Context, song *model.Song, albumIDs []uint) error
	Update(ctx context.Context, song *model.Song, albumIDs []uint) error
	Delete(ctx context.Context, id uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Song, error)
	Search(ctx context.Context, params SearchParams) (songs []model.Song, total int64, err error)
}

type songRepository struct {
	db *gorm.DB
}

// NewSongRepository creates a new song repository.
func NewSongRepository(db *gorm.DB) SongRepository {
	return &songRepository{db: db}
}

// Create persists the song and appends it to each listed album as the next
// track, all in one transaction.
func (r *songRepository) Create(ctx context.Context, song *model.Song, albumIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Albums").Create(song).Error; err != nil {
			return err
		}
		return appendTracks(tx, song.ID, albumIDs)
	})
}

// Update saves the song fields and reconciles its album memberships. Albums
// the song already belongs to keep their track row untouched, so editing a
// song never reorders the albums it sits in.
func (r *songRepository) Update(ctx context.Context, song *model.Song, albumIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Albums").Save(song).Error; err != nil {
			return err
		}

		var existing []model.AlbumTrack
		if err := tx.Where("song_id = ?", song.ID).Find(&existing).Error; err != nil {
			return err
		}
		removed, added := diffAlbumMemberships(existing, albumIDs)
		if len(removed) > 0 {
			if err := tx.Where("song_id = ? AND album_id IN ?", song.ID, removed).Delete(&model.AlbumTrack{}).Error; err != nil {
				return err
			}
		}
		return appendTracks(tx, song.ID, added)
	})
}

// diffAlbumMemberships splits the wanted album list against the current track
// rows: memberships present in both are left alone, keeping their position.
func diffAlbumMemberships(existing []model.AlbumTrack, want []uint) (removed, added []uint) {
	wanted := make(map[uint]bool, len(want))
	for _, albumID := range want {
		wanted[albumID] = true
	}
	current := make(map[uint]bool, len(existing))
	for _, row := range existing {
		current[row.AlbumID] = true
		if !wanted[row.AlbumID] {
			removed = append(removed, row.AlbumID)
		}
	}
	for _, albumID := range want {
		if !current[albumID] {
			added = append(added, albumID)
		}
	}
	return removed, added
}

// appendTracks places the song after the album's highest track number.
// MAX(track) rather than a row count, since deletions leave gaps.
func appendTracks(tx *gorm.DB, songID uint, albumIDs []uint) error {
	for _, albumID := range albumIDs {
		var last int
		if err := tx.Model(&model.AlbumTrack{}).
			Where("album_id = ?", albumID).
			Select("COALESCE(MAX(track), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		track := model.AlbumTrack{AlbumID: albumID, SongID: songID, Track: last + 1}
		if err := tx.Create(&track).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the song and its track rows, reporting whether it existed.
func (r *songRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", id).Delete(&model.AlbumTrack{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Song{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

func (r *songRepository) FindByID(ctx context.Context, id uint) (*model.Song, error) {
	var song model.Song
	if err := r.db.WithContext(ctx).Preload("Albums").First(&song, id).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// Search combines free-text search, the type filter, whitelisted sort order
// and page-based pagination into one query pair (count + page fetch).
func (r *songRepository) Search(ctx context.Context, params SearchParams) ([]model.Song, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Song{})

	if params.Query != "" {
		like := "%" + params.Query + "%"
		switch params.Type {
		case SearchTypeTitle:
			q = q.Where("title LIKE ?", like)
		case SearchTypeLyrics:
			q = q.Where("lyrics LIKE ?", like)
		case SearchTypeNumber:
			number, err := strconv.Atoi(params.Query)
			if err != nil {
				return []model.Song{}, 0, nil
			}
			q = q.Where("id = ?", number)
		default:
			q = q.Where("title LIKE ? OR lyrics LIKE ?", like, like)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := sortColumns[params.SortBy]
	if !ok {
		order = "id ASC"
	}

	page := params.Page
	if page < 1 {
		page = 1
	}

	var songs []model.Song
	err := q.Order(order).
		Limit(PageSize).
		Offset((page - 1) * PageSize).
		Find(&songs).Error
	if err != nil {
		return nil, 0, err
	}
	return songs, total, nil
}
