package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"folio/internal/models"
)

//go:embed seed/posts.json
var seedPosts []byte

//go:embed seed/home-layout.html
var seedHomeLayout string

// SeedOptions controls the admin account created by Seed. When either field
// is empty no admin is created.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// seedFile mirrors the structure of seed/posts.json.
type seedFile struct {
	Posts []models.Post `json:"posts"`
}

// Seed loads the initial admin account, the home page and the sample posts.
// Every record is keyed by its natural identifier (email or slug) and is
// only inserted when missing, so Seed is safe to run on every start.
func Seed(ctx context.Context, db *sql.DB, opts SeedOptions) error {
	if opts.AdminEmail != "" && opts.AdminPassword != "" {
		if err := seedAdmin(ctx, db, opts.AdminEmail, opts.AdminPassword); err != nil {
			return err
		}
	}

	if err := seedHome(ctx, db); err != nil {
		return err
	}

	return seedPostsFromFile(ctx, db, seedPosts)
}

func seedAdmin(ctx context.Context, db *sql.DB, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	// 2FA is not enabled; the admin is asked to enroll on first login.
	res, err := db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, name, totp_enabled)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (email) DO NOTHING
	`, email, string(hash), "Admin")
	if err != nil {
		return fmt.Errorf("seed insert admin: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("seeded admin user", "email", email)
	} else {
		slog.Info("admin user already exists", "email", email)
	}
	return nil
}

func seedHome(ctx context.Context, db *sql.DB) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO pages (title, slug, layout_html)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO NOTHING
	`, "Home", "home", seedHomeLayout)
	if err != nil {
		return fmt.Errorf("seed insert home page: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("seeded home page")
	} else {
		slog.Info("home page already exists")
	}
	return nil
}

func seedPostsFromFile(ctx context.Context, db *sql.DB, raw []byte) error {
	var file seedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("seed parse posts: %w", err)
	}

	now := time.Now()
	for i := range file.Posts {
		p := &file.Posts[i]
		p.ApplyDefaults(now)

		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("seed marshal tags %s: %w", p.Slug, err)
		}
		gallery, err := json.Marshal(p.Gallery)
		if err != nil {
			return fmt.Errorf("seed marshal gallery %s: %w", p.Slug, err)
		}

		res, err := db.ExecContext(ctx, `
			INSERT INTO posts (title, slug, kind, featured, tags, excerpt, content_html, video_url, audio_url, gallery, date)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10::jsonb, $11)
			ON CONFLICT (slug) DO NOTHING
		`, p.Title, p.Slug, string(p.Kind), p.Featured, string(tags), p.Excerpt,
			p.ContentHTML, p.VideoURL, p.AudioURL, string(gallery), p.Date)
		if err != nil {
			return fmt.Errorf("seed insert post %s: %w", p.Slug, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			slog.Info("seeded post", "title", p.Title)
		}
	}
	return nil
}
