package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/config"
	"github.com/afrocoder16/mkc-songbook/internal/db"
	"github.com/afrocoder16/mkc-songbook/internal/model"
	"github.com/afrocoder16/mkc-songbook/internal/repository"
)

// SeedSongData is one song entry in the catalog file.
type SeedSongData struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Lyrics    string `json:"lyrics"`
	Tempo     *int   `json:"tempo,omitempty"`
	VideoLink string `json:"video_link,omitempty"`
}

// SeedAlbumData is one album entry in the catalog file. Songs lists the
// track order by song number.
type SeedAlbumData struct {
	ID                  uint   `json:"id"`
	Title               string `json:"title"`
	YoutubePlaylistLink string `json:"youtube_playlist_link,omitempty"`
	Songs               []uint `json:"songs"`
}

// SeedCatalog is the top level structure of the catalog file.
type SeedCatalog struct {
	Songs  []SeedSongData  `json:"songs"`
	Albums []SeedAlbumData `json:"albums"`
}

func main() {
	catalogPath := flag.String("catalog", "seed/catalog.json", "path to the songs/albums catalog JSON file")
	flag.Parse()

	log.Println("Starting seed script...")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.SetupJoinTable(&model.Album{}, "Songs", &model.AlbumTrack{}); err != nil {
		log.Fatalf("Failed to set up join table: %v", err)
	}
	if err := gormDB.SetupJoinTable(&model.Song{}, "Albums", &model.AlbumTrack{}); err != nil {
		log.Fatalf("Failed to set up join table: %v", err)
	}

	// Run migrations to ensure schema is up to date
	if err := gormDB.AutoMigrate(&model.Song{}, &model.Album{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Load catalog from file
	log.Printf("Loading catalog from: %s", *catalogPath)
	catalog, err := loadCatalog(*catalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Loaded %d songs and %d albums from catalog", len(catalog.Songs), len(catalog.Albums))

	songRepo := repository.NewSongRepository(gormDB)
	albumRepo := repository.NewAlbumRepository(gormDB)
	ctx := context.Background()

	log.Println("Seeding songs into database...")
	songsCreated, songsUpdated, err := seedSongs(ctx, songRepo, catalog.Songs)
	if err != nil {
		log.Fatalf("Failed to seed songs: %v", err)
	}

	log.Println("Seeding albums into database...")
	albumsCreated, albumsUpdated, err := seedAlbums(ctx, albumRepo, catalog.Albums)
	if err != nil {
		log.Fatalf("Failed to seed albums: %v", err)
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - Songs created: %d, updated: %d", songsCreated, songsUpdated)
	log.Printf("  - Albums created: %d, updated: %d", albumsCreated, albumsUpdated)
}

// loadCatalog reads and parses the catalog JSON file.
func loadCatalog(path string) (*SeedCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var catalog SeedCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	for _, song := range catalog.Songs {
		if song.ID == 0 || song.Title == "" {
			return nil, fmt.Errorf("song entry missing id or title: %+v", song)
		}
	}
	for _, album := range catalog.Albums {
		if album.ID == 0 || album.Title == "" {
			return nil, fmt.Errorf("album entry missing id or title: %+v", album)
		}
	}
	return &catalog, nil
}

// seedSongs upserts songs by their song number. Album memberships are left
// to the album entries so track order stays authoritative in one place.
func seedSongs(ctx context.Context, repo repository.SongRepository, songs []SeedSongData) (created int, updated int, err error) {
	for _, item := range songs {
		song := model.Song{
			ID:        item.ID,
			Title:     item.Title,
			Lyrics:    item.Lyrics,
			Tempo:     item.Tempo,
			VideoLink: item.VideoLink,
		}

		existing, err := repo.FindByID(ctx, item.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, updated, fmt.Errorf("error checking song %d: %w", item.ID, err)
		}

		if existing != nil {
			song.AudioKey = existing.AudioKey
			if err := repo.Update(ctx, &song, trackAlbumIDs(existing.Albums)); err != nil {
				return created, updated, fmt.Errorf("error updating song %d: %w", item.ID, err)
			}
			updated++
		} else {
			if err := repo.Create(ctx, &song, nil); err != nil {
				return created, updated, fmt.Errorf("error creating song %d: %w", item.ID, err)
			}
			created++
		}
	}

	return created, updated, nil
}

// seedAlbums upserts albums by their album number, rewriting each track list
// in catalog order.
func seedAlbums(ctx context.Context, repo repository.AlbumRepository, albums []SeedAlbumData) (created int, updated int, err error) {
	for _, item := range albums {
		album := model.Album{
			ID:                  item.ID,
			Title:               item.Title,
			YoutubePlaylistLink: item.YoutubePlaylistLink,
		}

		existing, err := repo.FindByID(ctx, item.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, updated, fmt.Errorf("error checking album %d: %w", item.ID, err)
		}

		if existing != nil {
			album.CoverKey = existing.CoverKey
			if err := repo.Update(ctx, &album, item.Songs); err != nil {
				return created, updated, fmt.Errorf("error updating album %d: %w", item.ID, err)
			}
			updated++
		} else {
			if err := repo.Create(ctx, &album, item.Songs); err != nil {
				return created, updated, fmt.Errorf("error creating album %d: %w", item.ID, err)
			}
			created++
		}
	}

	return created, updated, nil
}

func trackAlbumIDs(albums []model.Album) []uint {
	ids := make([]uint, 0, len(albums))
	for _, album := range albums {
		ids = append(ids, album.ID)
	}
	return ids
}
