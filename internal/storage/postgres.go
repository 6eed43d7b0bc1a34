package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

// eventRow maps the events table.
type eventRow struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title             string    `gorm:"column:title;type:text;not null"`
	NormalizedTitle   string    `gorm:"column:normalized_title;type:text;not null;uniqueIndex:uq_events_identity,priority:1"`
	StartTime         string    `gorm:"column:start_time;type:text;not null;uniqueIndex:uq_events_identity,priority:2"`
	EndTime           string    `gorm:"column:end_time;type:text;not null;default:''"`
	Location          string    `gorm:"column:location;type:text;not null;uniqueIndex:uq_events_identity,priority:3;index:idx_events_location"`
	Price             string    `gorm:"column:price;type:text;not null;default:''"`
	Description       string    `gorm:"column:description;type:text;not null;default:''"`
	DescriptionDetail string    `gorm:"column:description_detail;type:text;not null;default:''"`
	SourceID          string    `gorm:"column:source_id;type:text;not null;default:''"`
	OriginalURL       string    `gorm:"column:original_url;type:text;not null"`
	EventType         string    `gorm:"column:event_type;type:text;not null;default:''"`
	Priority          int       `gorm:"column:priority;type:integer;not null;default:0"`
	Confidence        float64   `gorm:"column:confidence;type:double precision;not null;default:0"`
	ChineseRelevant   bool      `gorm:"column:chinese_relevant;type:boolean;not null;default:false"`
	WeekIdentifier    string    `gorm:"column:week_identifier;type:text;not null"`
	Translation       *string   `gorm:"column:translation;type:text"`
	ShortSummary      *string   `gorm:"column:short_summary;type:text"`
	DetailedSummary   *string   `gorm:"column:detailed_summary;type:text"`
	ScrapedAt         time.Time `gorm:"column:scraped_at;type:timestamptz;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (eventRow) TableName() string { return "events" }

// scrapeLogRow maps the scraping_logs table.
type scrapeLogRow struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string    `gorm:"column:run_id;type:text;not null;index"`
	Source      string    `gorm:"column:source;type:text;not null;index"`
	Week        string    `gorm:"column:week_identifier;type:text;not null;default:''"`
	EventsCount int       `gorm:"column:events_count;type:integer;not null;default:0"`
	Success     bool      `gorm:"column:success;type:boolean;not null"`
	Error       *string   `gorm:"column:error_message;type:text"`
	ScrapedAt   time.Time `gorm:"column:scraped_at;type:timestamptz;not null;default:now()"`
}

func (scrapeLogRow) TableName() string { return "scraping_logs" }

// PostgresBackend stores records in PostgreSQL through gorm.
type PostgresBackend struct {
	gdb   *gorm.DB
	sqlDB *sql.DB
}

// NewPostgres connects to dsn, retrying transient connection failures, and
// migrates the schema.
func NewPostgres(ctx context.Context, dsn, logLevel string, log *logger.Logger) (*PostgresBackend, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database URL is required for the postgres backend")
	}
	if log == nil {
		log = logger.Nop()
	}

	var gdb *gorm.DB
	connect := func() error {
		var err error
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(resolveGormLogLevel(logLevel)),
			TranslateError: true,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err != nil {
			return err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.RetryNotify(connect, policy, func(err error, wait time.Duration) {
		log.Warn("Database connection failed, retrying", logger.Fields{"retry_in": wait.String(), "error": err.Error()})
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	b := &PostgresBackend{gdb: gdb, sqlDB: sqlDB}
	if err := b.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	if err := b.gdb.WithContext(ctx).AutoMigrate(&eventRow{}, &scrapeLogRow{}); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}
	if trimmed := strings.TrimSpace(postAutoMigrateSQL); trimmed != "" {
		if err := b.gdb.WithContext(ctx).Exec(trimmed).Error; err != nil {
			return fmt.Errorf("execute post-auto-migrate SQL: %w", err)
		}
	}
	return nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.sqlDB.PingContext(ctx)
}

func (b *PostgresBackend) FindByIdentity(ctx context.Context, id event.Identity) (*event.Record, error) {
	var row eventRow
	err := b.gdb.WithContext(ctx).
		Where("normalized_title = ? AND start_time = ? AND location = ?", id.NormalizedTitle, id.StartTime, id.Location).
		Take(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row.record(), nil
}

func (b *PostgresBackend) FindCandidates(ctx context.Context, q CandidateQuery) ([]*event.Record, error) {
	tx := b.gdb.WithContext(ctx).
		Where("location = ?", q.Location).
		Where("ABS(EXTRACT(EPOCH FROM (CAST(start_time AS timestamp) - CAST(? AS timestamp)))) < ?",
			event.FormatCivil(q.Start), q.Window.Seconds())
	if q.Week != "" {
		tx = tx.Where("week_identifier = ?", q.Week)
	}

	var rows []eventRow
	if err := tx.Order("start_time, id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return records(rows), nil
}

func (b *PostgresBackend) Insert(ctx context.Context, rec *event.Record) (int64, error) {
	row := newEventRow(rec)
	if err := b.gdb.WithContext(ctx).Create(row).Error; err != nil {
		return 0, translate(err)
	}
	return row.ID, nil
}

const upsertSQL = `
INSERT INTO events (
	title, normalized_title, start_time, end_time, location, price, description,
	description_detail, source_id, original_url, event_type, priority, confidence,
	chinese_relevant, week_identifier, translation, short_summary, detailed_summary,
	scraped_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now(), now())
ON CONFLICT (normalized_title, start_time, location) DO UPDATE SET
	title = EXCLUDED.title,
	end_time = EXCLUDED.end_time,
	price = EXCLUDED.price,
	description = EXCLUDED.description,
	description_detail = EXCLUDED.description_detail,
	source_id = EXCLUDED.source_id,
	original_url = EXCLUDED.original_url,
	event_type = EXCLUDED.event_type,
	priority = EXCLUDED.priority,
	confidence = EXCLUDED.confidence,
	chinese_relevant = EXCLUDED.chinese_relevant,
	week_identifier = EXCLUDED.week_identifier,
	translation = COALESCE(EXCLUDED.translation, events.translation),
	short_summary = COALESCE(EXCLUDED.short_summary, events.short_summary),
	detailed_summary = COALESCE(EXCLUDED.detailed_summary, events.detailed_summary),
	scraped_at = EXCLUDED.scraped_at,
	updated_at = now()
RETURNING id, (xmax = 0) AS created`

func (b *PostgresBackend) Upsert(ctx context.Context, rec *event.Record) (int64, bool, error) {
	row := newEventRow(rec)

	var id int64
	var created bool
	err := b.gdb.WithContext(ctx).Raw(upsertSQL,
		row.Title, row.NormalizedTitle, row.StartTime, row.EndTime, row.Location, row.Price,
		row.Description, row.DescriptionDetail, row.SourceID, row.OriginalURL, row.EventType,
		row.Priority, row.Confidence, row.ChineseRelevant, row.WeekIdentifier,
		row.Translation, row.ShortSummary, row.DetailedSummary, row.ScrapedAt,
	).Row().Scan(&id, &created)
	if err != nil {
		return 0, false, translate(err)
	}
	return id, created, nil
}

func (b *PostgresBackend) Get(ctx context.Context, id int64) (*event.Record, error) {
	var row eventRow
	if err := b.gdb.WithContext(ctx).Take(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	return row.record(), nil
}

func (b *PostgresBackend) WeekEvents(ctx context.Context, week string) ([]*event.Record, error) {
	var rows []eventRow
	err := b.gdb.WithContext(ctx).
		Where("week_identifier = ?", week).
		Order("start_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return records(rows), nil
}

func (b *PostgresBackend) UpdateEnrichment(ctx context.Context, id int64, en event.Enrichment) (*event.Record, error) {
	updates := map[string]any{}
	if en.Translation != nil {
		updates["translation"] = *en.Translation
	}
	if en.ShortSummary != nil {
		updates["short_summary"] = *en.ShortSummary
	}
	if en.DetailedSummary != nil {
		updates["detailed_summary"] = *en.DetailedSummary
	}

	if len(updates) > 0 {
		res := b.gdb.WithContext(ctx).Model(&eventRow{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return b.Get(ctx, id)
}

func (b *PostgresBackend) Delete(ctx context.Context, id int64) error {
	res := b.gdb.WithContext(ctx).Delete(&eventRow{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *PostgresBackend) LogScrapingResult(ctx context.Context, entry *ScrapeLog) error {
	row := &scrapeLogRow{
		RunID:       entry.RunID,
		Source:      entry.Source,
		Week:        entry.Week,
		EventsCount: entry.EventsCount,
		Success:     entry.Success,
		ScrapedAt:   entry.ScrapedAt,
	}
	if entry.Error != "" {
		msg := entry.Error
		row.Error = &msg
	}
	if row.ScrapedAt.IsZero() {
		row.ScrapedAt = time.Now().UTC()
	}

	if err := b.gdb.WithContext(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	entry.ID = row.ID
	return nil
}

func (b *PostgresBackend) ScrapeLogs(ctx context.Context, q ScrapeLogQuery) ([]*ScrapeLog, error) {
	tx := b.gdb.WithContext(ctx).Order("scraped_at DESC, id DESC")
	if q.Source != "" {
		tx = tx.Where("source = ?", q.Source)
	}
	if q.Week != "" {
		tx = tx.Where("week_identifier = ?", q.Week)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []scrapeLogRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}

	out := make([]*ScrapeLog, 0, len(rows))
	for _, row := range rows {
		entry := &ScrapeLog{
			ID:          row.ID,
			RunID:       row.RunID,
			Source:      row.Source,
			Week:        row.Week,
			EventsCount: row.EventsCount,
			Success:     row.Success,
			ScrapedAt:   row.ScrapedAt,
		}
		if row.Error != nil {
			entry.Error = *row.Error
		}
		out = append(out, entry)
	}
	return out, nil
}

func (b *PostgresBackend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}

func newEventRow(rec *event.Record) *eventRow {
	scrapedAt := rec.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}
	return &eventRow{
		Title:             rec.Title,
		NormalizedTitle:   rec.NormalizedTitle,
		StartTime:         rec.StartTime,
		EndTime:           rec.EndTime,
		Location:          rec.Location,
		Price:             rec.Price,
		Description:       rec.Description,
		DescriptionDetail: rec.DescriptionDetail,
		SourceID:          rec.SourceID,
		OriginalURL:       rec.OriginalURL,
		EventType:         rec.EventType,
		Priority:          rec.Priority,
		Confidence:        rec.Confidence,
		ChineseRelevant:   rec.ChineseRelevant,
		WeekIdentifier:    rec.WeekIdentifier,
		Translation:       rec.Translation,
		ShortSummary:      rec.ShortSummary,
		DetailedSummary:   rec.DetailedSummary,
		ScrapedAt:         scrapedAt,
	}
}

func (r *eventRow) record() *event.Record {
	return &event.Record{
		ID: r.ID,
		Event: event.Event{
			Title:             r.Title,
			NormalizedTitle:   r.NormalizedTitle,
			StartTime:         r.StartTime,
			EndTime:           r.EndTime,
			Location:          r.Location,
			Price:             r.Price,
			Description:       r.Description,
			DescriptionDetail: r.DescriptionDetail,
			SourceID:          r.SourceID,
			OriginalURL:       r.OriginalURL,
			EventType:         r.EventType,
			Priority:          r.Priority,
			Confidence:        r.Confidence,
			ChineseRelevant:   r.ChineseRelevant,
			WeekIdentifier:    r.WeekIdentifier,
		},
		Enrichment: event.Enrichment{
			Translation:     r.Translation,
			ShortSummary:    r.ShortSummary,
			DetailedSummary: r.DetailedSummary,
		},
		ScrapedAt: r.ScrapedAt,
	}
}

func records(rows []eventRow) []*event.Record {
	out := make([]*event.Record, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].record())
	}
	return out
}

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

func resolveGormLogLevel(appLogLevel string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(appLogLevel)) {
	case "trace", "debug":
		return gormlogger.Info
	case "warn", "warning", "info", "":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Error
	}
}
