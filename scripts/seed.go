// Seeds a development database with demo accounts and a small catalog.
//
// Usage: go run ./scripts -config configs/development.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mangahub/internal/repository"
	"mangahub/pkg/config"
	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.Open(database.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	seedUsers(ctx, repository.NewUserRepository(db))
	seedCatalog(ctx, repository.NewMangaRepository(db))
	fmt.Println("Seed complete.")
}

func seedUsers(ctx context.Context, users repository.UserRepository) {
	accounts := []struct {
		username, email, password string
		role                      models.UserRole
	}{
		{"admin", "admin@mangahub.local", "admin123", models.UserRoleAdmin},
		{"reader", "reader@mangahub.local", "readerpass", models.UserRoleUser},
	}
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("hash password for %s: %v", a.username, err)
		}
		err = users.Create(ctx, &models.User{
			ID:           uuid.NewString(),
			Username:     a.username,
			Email:        a.email,
			PasswordHash: string(hash),
			Role:         a.role,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			// Re-running the seeder against an existing database is fine.
			fmt.Printf("skip user %s: %v\n", a.username, err)
			continue
		}
		fmt.Printf("created user %s (password %q)\n", a.username, a.password)
	}
}

func seedCatalog(ctx context.Context, manga repository.MangaRepository) {
	entries := []models.Manga{
		{
			ID:              "one-piece",
			Title:           "One Piece",
			Author:          "Eiichiro Oda",
			Status:          "ongoing",
			TotalChapters:   1100,
			Genres:          []string{"action", "adventure", "comedy"},
			Description:     "Monkey D. Luffy sets off to become the Pirate King.",
			PublicationYear: 1997,
		},
		{
			ID:              "berserk",
			Title:           "Berserk",
			Author:          "Kentaro Miura",
			Status:          "hiatus",
			TotalChapters:   374,
			Genres:          []string{"action", "dark fantasy", "horror"},
			Description:     "Guts, the Black Swordsman, hunts the apostles that branded him.",
			PublicationYear: 1989,
		},
		{
			ID:              "fullmetal-alchemist",
			Title:           "Fullmetal Alchemist",
			Author:          "Hiromu Arakawa",
			Status:          "completed",
			TotalChapters:   116,
			Genres:          []string{"action", "adventure", "fantasy"},
			Description:     "Two brothers pay the price of forbidden alchemy.",
			PublicationYear: 2001,
		},
	}
	for i := range entries {
		m := &entries[i]
		m.CreatedAt = time.Now().UTC()
		if err := manga.Create(ctx, m); err != nil {
			fmt.Printf("skip manga %s: %v\n", m.ID, err)
			continue
		}
		for n := 1; n <= 3; n++ {
			ch := &models.Chapter{
				ID:          fmt.Sprintf("%s-ch-%d", m.ID, n),
				MangaID:     m.ID,
				Number:      float64(n),
				Title:       fmt.Sprintf("Chapter %d", n),
				Language:    "en",
				Source:      "local",
				PublishedAt: time.Now().UTC(),
				Pages: []string{
					fmt.Sprintf("https://cdn.mangahub.local/%s/%d/1.png", m.ID, n),
					fmt.Sprintf("https://cdn.mangahub.local/%s/%d/2.png", m.ID, n),
				},
			}
			if err := manga.CreateChapter(ctx, ch); err != nil {
				fmt.Printf("skip chapter %s: %v\n", ch.ID, err)
			}
		}
		fmt.Printf("created manga %s\n", m.ID)
	}
}
