package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/logger"
)

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// querier is the subset of *pgxpool.Pool the sink uses
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Postgres stores creators, posts, comments and collaborators
type Postgres struct {
	db       querier
	pool     *pgxpool.Pool
	schema   string
	creators map[string]int64
	logger   logger.Logger
}

// OpenPostgres connects to cfg.DSN and creates the tables when cfg.Migrate is set
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*Postgres, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, "parse database dsn", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, "connect database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.ErrorTypeStorage, "ping database", err)
	}

	p := newPostgres(pool, cfg.Schema, log)
	p.pool = pool
	if cfg.Migrate {
		if err := p.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return p, nil
}

func newPostgres(db querier, schema string, log logger.Logger) *Postgres {
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Postgres{db: db, schema: schema, creators: make(map[string]int64), logger: log}
}

func (p *Postgres) table(name string) string {
	return pgx.Identifier{p.schema, name}.Sanitize()
}

// EnsureSchema creates the schema and tables if they do not exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{p.schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + p.table("creator") + ` (
			id BIGSERIAL PRIMARY KEY,
			handle TEXT NOT NULL UNIQUE
		)`,
		`ALTER TABLE ` + p.table("creator") + `
			ADD COLUMN IF NOT EXISTS name TEXT,
			ADD COLUMN IF NOT EXISTS bio TEXT,
			ADD COLUMN IF NOT EXISTS photo_url TEXT,
			ADD COLUMN IF NOT EXISTS posts INTEGER,
			ADD COLUMN IF NOT EXISTS followers INTEGER,
			ADD COLUMN IF NOT EXISTS following INTEGER,
			ADD COLUMN IF NOT EXISTS profile_updated_at TIMESTAMPTZ`,
		`CREATE TABLE IF NOT EXISTS ` + p.table("insta_post_info") + ` (
			media_id TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			creator_id BIGINT REFERENCES ` + p.table("creator") + `(id),
			timestamp TIMESTAMPTZ,
			caption TEXT,
			media_url TEXT,
			media_type TEXT NOT NULL DEFAULT 'image',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			views INTEGER NOT NULL DEFAULT 0,
			likes INTEGER NOT NULL DEFAULT 0,
			hashtag TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS ` + p.table("comments") + ` (
			media_id TEXT NOT NULL REFERENCES ` + p.table("insta_post_info") + `(media_id),
			author TEXT NOT NULL,
			comment TEXT NOT NULL,
			mentions JSONB,
			timestamp TIMESTAMPTZ,
			UNIQUE (media_id, author, comment)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + p.table("collab") + ` (
			media_id TEXT NOT NULL REFERENCES ` + p.table("insta_post_info") + `(media_id),
			author_id BIGINT REFERENCES ` + p.table("creator") + `(id),
			collaborator TEXT NOT NULL,
			collab_type TEXT NOT NULL,
			UNIQUE (media_id, collaborator)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, "ensure schema", err)
		}
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

// creatorID gets or creates the creator row for handle
func (p *Postgres) creatorID(ctx context.Context, handle string) (int64, error) {
	if id, ok := p.creators[handle]; ok {
		return id, nil
	}
	var id int64
	err := p.db.QueryRow(ctx,
		`INSERT INTO `+p.table("creator")+` (handle) VALUES ($1)
		ON CONFLICT (handle) DO UPDATE SET handle = EXCLUDED.handle
		RETURNING id`, handle).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeStorage, "upsert creator", err)
	}
	p.creators[handle] = id
	return id, nil
}

// WriteProfile upserts the creator row with the profile header. Counts the
// page did not show keep their stored value.
func (p *Postgres) WriteProfile(ctx context.Context, profile feed.Profile) error {
	handle := feed.NormalizeHandle(profile.Handle)
	if handle == "" {
		return errs.New(errs.ErrorTypeStorage, "upsert profile", "profile has no handle")
	}
	var id int64
	err := p.db.QueryRow(ctx,
		`INSERT INTO `+p.table("creator")+` AS c
			(handle, name, bio, photo_url, posts, followers, following, profile_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (handle) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, c.name),
			bio = COALESCE(EXCLUDED.bio, c.bio),
			photo_url = COALESCE(EXCLUDED.photo_url, c.photo_url),
			posts = COALESCE(EXCLUDED.posts, c.posts),
			followers = COALESCE(EXCLUDED.followers, c.followers),
			following = COALESCE(EXCLUDED.following, c.following),
			profile_updated_at = EXCLUDED.profile_updated_at
		RETURNING id`,
		handle, nullable(profile.Name), nullable(profile.Bio), nullable(profile.PhotoURL),
		profile.Posts, profile.Followers, profile.Following,
	).Scan(&id)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "upsert profile", err)
	}
	p.creators[handle] = id
	p.logger.WithField("handle", handle).Debug("Stored profile")
	return nil
}

// Write upserts every item with its comments and collaborators in one batch
func (p *Postgres) Write(ctx context.Context, handle string, items []feed.Item) error {
	if len(items) == 0 {
		return nil
	}
	handle = feed.NormalizeHandle(handle)
	creatorID, err := p.creatorID(ctx, handle)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	for _, it := range items {
		mediaID := it.MediaID()
		if mediaID == "" {
			p.logger.WithField("key", it.Key).Warn("Item has no media id, not stored")
			continue
		}
		p.queueItem(b, creatorID, mediaID, it)
	}
	if b.Len() == 0 {
		return nil
	}

	br := p.db.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errs.Wrap(errs.ErrorTypeStorage, "write items", err)
		}
	}
	if err := br.Close(); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "write items", err)
	}
	p.logger.WithFields(map[string]interface{}{
		"handle":     handle,
		"statements": b.Len(),
	}).Debug("Items written to database")
	return nil
}

func (p *Postgres) queueItem(b *pgx.Batch, creatorID int64, mediaID string, it feed.Item) {
	likes := 0
	if it.LikeCount != nil {
		likes = *it.LikeCount
	}
	var mediaURL *string
	if it.MediaURL != "" && it.MediaURL != feed.Unavailable {
		mediaURL = &it.MediaURL
	}

	// a summary record never overwrites detail already stored
	b.Queue(`INSERT INTO `+p.table("insta_post_info")+` AS post
		(media_id, key, creator_id, timestamp, caption, media_url, media_type, created_at, is_deleted, views, likes, hashtag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), FALSE, 0, $8, $9)
		ON CONFLICT (media_id) DO UPDATE SET
			timestamp = COALESCE(EXCLUDED.timestamp, post.timestamp),
			caption = COALESCE(EXCLUDED.caption, post.caption),
			media_url = COALESCE(EXCLUDED.media_url, post.media_url),
			media_type = EXCLUDED.media_type,
			likes = GREATEST(EXCLUDED.likes, post.likes),
			hashtag = COALESCE(EXCLUDED.hashtag, post.hashtag),
			is_deleted = FALSE`,
		mediaID, it.Key, creatorID, it.Timestamp, nullable(it.Caption), mediaURL, mediaType(it.MediaURL), likes, hashtags(it.Caption),
	)

	for _, c := range it.Comments {
		mentions, _ := json.Marshal(c.Mentions)
		b.Queue(`INSERT INTO `+p.table("comments")+` (media_id, author, comment, mentions, timestamp)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (media_id, author, comment) DO NOTHING`,
			mediaID, c.Author, c.Text, string(mentions), c.Timestamp,
		)
	}

	for _, c := range it.Collaborators {
		b.Queue(`INSERT INTO `+p.table("collab")+` (media_id, author_id, collaborator, collab_type)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (media_id, collaborator) DO NOTHING`,
			mediaID, creatorID, c.Handle, string(c.Kind),
		)
	}
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func mediaType(mediaURL string) string {
	if strings.Contains(strings.ToLower(mediaURL), ".mp4") {
		return "video"
	}
	return "image"
}

func hashtags(caption string) *string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range hashtagPattern.FindAllStringSubmatch(caption, -1) {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	joined := strings.Join(tags, ",")
	return &joined
}

func nullable(s string) *string {
	if s == "" || s == feed.Unavailable {
		return nil
	}
	return &s
}

var _ Sink = (*Postgres)(nil)
