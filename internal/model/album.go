package model

import "time"

// Album groups songs into an ordered track list. ID is assigned by the
// uploader, matching the song-number convention.
type Album struct {
	ID                  uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title               string    `json:"title" gorm:"size:255;not null"`
	YoutubePlaylistLink string    `json:"youtube_playlist_link,omitempty" gorm:"size:512"`
	CoverKey            string    `json:"-" gorm:"size:512"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	// Relations
	Songs []Song `json:"songs,omitempty" gorm:"many2many:album_tracks"`
}

// AlbumTrack is the join row between albums and songs. Track is the 1-based
// position within the album; it must be registered with SetupJoinTable so
// GORM writes through it.
type AlbumTrack struct {
	AlbumID uint `json:"album_id" gorm:"primaryKey"`
	SongID  uint `json:"song_id" gorm:"primaryKey"`
	Track   int  `json:"track" gorm:"not null"`
}
