package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/model"
)

// AlbumRepository defines album persistence operations.
type AlbumRepository interface {
	Create(ctx context.Context, album *model.Album, songIDs []uint) error
	Update(ctx context.Context, album *model.Album, songIDs []uint) error
	Delete(ctx context.Context, id uint) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.Album, error)
	List(ctx context.Context) ([]model.Album, error)
}

type albumRepository struct {
	db *gorm.DB
}

// NewAlbumRepository creates a new album repository.
func NewAlbumRepository(db *gorm.DB) AlbumRepository {
	return &albumRepository{db: db}
}

// Create persists the album with its ordered track list.
func (r *albumRepository) Create(ctx context.Context, album *model.Album, songIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Songs").Create(album).Error; err != nil {
			return err
		}
		return writeTracks(tx, album.ID, songIDs)
	})
}

// Update saves album fields and rewrites the track list in submitted order.
func (r *albumRepository) Update(ctx context.Context, album *model.Album, songIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Songs").Save(album).Error; err != nil {
			return err
		}
		if err := tx.Where("album_id = ?", album.ID).Delete(&model.AlbumTrack{}).Error; err != nil {
			return err
		}
		return writeTracks(tx, album.ID, songIDs)
	})
}

func writeTracks(tx *gorm.DB, albumID uint, songIDs []uint) error {
	for i, songID := range songIDs {
		track := model.AlbumTrack{AlbumID: albumID, SongID: songID, Track: i + 1}
		if err := tx.Create(&track).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the album and its track rows, reporting whether it existed.
func (r *albumRepository) Delete(ctx context.Context, id uint) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("album_id = ?", id).Delete(&model.AlbumTrack{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Album{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// FindByID loads the album with its songs in track order.
func (r *albumRepository) FindByID(ctx context.Context, id uint) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).
		Preload("Songs", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("album_tracks.track ASC")
		}).
		First(&album, id).Error
	if err != nil {
		return nil, err
	}
	return &album, nil
}

func (r *albumRepository) List(ctx context.Context) ([]model.Album, error) {
	var albums []model.Album
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&albums).Error; err != nil {
		return nil, err
	}
	return albums, nil
}
