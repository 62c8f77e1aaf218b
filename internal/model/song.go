package model

import "time"

// MinTempo is the slowest tempo (BPM) a song form accepts.
const MinTempo = 30

// Song represents one entry in the choir songbook. ID is the song number
// assigned by the uploader, not an auto-increment key.
type Song struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title     string    `json:"title" gorm:"size:255;not null;index"`
	Lyrics    string    `json:"lyrics" gorm:"type:text;not null"`
	Tempo     *int      `json:"tempo,omitempty"`
	VideoLink string    `json:"video_link,omitempty" gorm:"size:512"`
	AudioKey  string    `json:"-" gorm:"size:512"` // object storage key, streamed via the audio endpoint
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Albums []Album `json:"albums,omitempty" gorm:"many2many:album_tracks"`
}

// HasAudio reports whether an audio file has been uploaded for the song.
func (s *Song) HasAudio() bool {
	return s.AudioKey != ""
}
