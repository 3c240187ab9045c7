// Package store is the single source of truth for events, their change
// history and application settings, persisted in a local SQLite file.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"evcal/internal/errdef"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// DefaultNotificationLead is used when the notification_time setting is
// missing or unusable.
const DefaultNotificationLead = 15 * time.Minute

// Option allows configuring the store.
type Option func(*options)

type options struct {
	loc    *time.Location
	now    func() time.Time
	logger logger.Interface
}

// WithLocation sets the zone returned timestamps are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithClock replaces time.Now, which drives created/updated stamps, history
// timestamps and GetUpcoming.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom GORM logger.
func WithLogger(l logger.Interface) Option { return func(o *options) { o.logger = l } }

// Store implements event, history and settings persistence using GORM.
type Store struct {
	db       *gorm.DB
	loc      *time.Location
	now      func() time.Time
	validate *validator.Validate
}

// Open opens (creating if needed) the SQLite database at path, migrates the
// schema and seeds default settings.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errdef.NewMissingField("database path is empty")
	}
	o := &options{
		loc: time.Local,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slogGorm.New(slogGorm.WithHandler(appLog.Handler()))
	}

	dsn := "file:" + filepath.ToSlash(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(gormlite.Open(dsn), &gorm.Config{
		Logger:  o.logger,
		NowFunc: o.now,
	})
	if err != nil {
		return nil, errdef.NewStorage("open database %s: %w", path, err)
	}

	// One connection serialises every read and write (single writer).
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errdef.NewStorage("open database %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		loc:      o.loc,
		now:      o.now,
		validate: newValidator(),
	}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	appLog.Debug("store opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&eventRecord{}, &historyRecord{}, &settingRecord{}); err != nil {
		return errdef.NewStorage("migrate schema: %w", err)
	}
	// Seed defaults without overwriting values the user has changed.
	seed := append([]settingRecord(nil), defaultSettings...)
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return errdef.NewStorage("seed settings: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errdef.NewStorage("close database: %w", err)
	}
	return sqlDB.Close()
}

// Location is the zone returned timestamps are expressed in.
func (s *Store) Location() *time.Location { return s.loc }

// Add inserts a new event and its "create" history entry, returning the new id.
func (s *Store) Add(ctx context.Context, in model.EventInput) (int64, error) {
	in, err := s.normalize(in)
	if err != nil {
		return 0, err
	}

	rec := newEventRecord(in)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := toUnix(s.now())
		rec.Created, rec.Updated = now, now
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return s.appendHistory(tx, rec.ID, model.ActionCreate, "Event created: "+rec.Title)
	})
	if err != nil {
		return 0, errdef.NewStorage("add event: %w", err)
	}

	appLog.Debug("event added", "id", rec.ID, "title", rec.Title)
	return rec.ID, nil
}

// AddAll inserts every input in a single transaction: either all events and
// their history entries are stored, or none are. The error of the first
// invalid input is returned wrapped with its 1-based position.
func (s *Store) AddAll(ctx context.Context, ins []model.EventInput) ([]int64, error) {
	recs := make([]eventRecord, 0, len(ins))
	for i, in := range ins {
		in, err := s.normalize(in)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		recs = append(recs, newEventRecord(in))
	}

	ids := make([]int64, 0, len(recs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := toUnix(s.now())
		for i := range recs {
			recs[i].Created, recs[i].Updated = now, now
			if err := tx.Create(&recs[i]).Error; err != nil {
				return err
			}
			if err := s.appendHistory(tx, recs[i].ID, model.ActionCreate, "Event created: "+recs[i].Title); err != nil {
				return err
			}
			ids = append(ids, recs[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, errdef.NewStorage("add events: %w", err)
	}

	appLog.Debug("events added", "count", len(ids))
	return ids, nil
}

// Update replaces every mutable field of event id, touches UpdatedAt and
// appends an "update" history entry. A missing id fails with NotFound.
func (s *Store) Update(ctx context.Context, id int64, in model.EventInput) error {
	in, err := s.normalize(in)
	if err != nil {
		return err
	}

	rec := newEventRecord(in)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing eventRecord
		if err := tx.Select("id").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errdef.NewNotFound("event %d not found", id)
			}
			return err
		}

		// A map is used so zero values (false, "", NULL) are written too.
		err := tx.Model(&eventRecord{}).Where("id = ?", id).Updates(map[string]any{
			"title":               rec.Title,
			"description":         rec.Description,
			"start_time":          rec.StartTime,
			"end_time":            rec.EndTime,
			"location":            rec.Location,
			"priority":            rec.Priority,
			"color":               rec.Color,
			"is_recurring":        rec.IsRecurring,
			"recurrence_type":     rec.RecurrenceType,
			"recurrence_end_date": rec.RecurrenceEndDate,
			"updated_at":          toUnix(s.now()),
		}).Error
		if err != nil {
			return err
		}
		return s.appendHistory(tx, id, model.ActionUpdate, "Event updated: "+rec.Title)
	})
	if err != nil {
		if errdef.IsNotFound(err) {
			return err
		}
		return errdef.NewStorage("update event %d: %w", id, err)
	}

	appLog.Debug("event updated", "id", id)
	return nil
}

// Delete hard-deletes event id and appends a "delete" history entry that
// keeps referring to the removed id. A missing id fails with NotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing eventRecord
		if err := tx.Select("id", "title").First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errdef.NewNotFound("event %d not found", id)
			}
			return err
		}
		if err := tx.Delete(&eventRecord{}, id).Error; err != nil {
			return err
		}
		return s.appendHistory(tx, id, model.ActionDelete, "Event deleted: "+existing.Title)
	})
	if err != nil {
		if errdef.IsNotFound(err) {
			return err
		}
		return errdef.NewStorage("delete event %d: %w", id, err)
	}

	appLog.Debug("event deleted", "id", id)
	return nil
}

// Get returns event id or a NotFound error.
func (s *Store) Get(ctx context.Context, id int64) (model.Event, error) {
	var rec eventRecord
	err := s.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Event{}, errdef.NewNotFound("event %d not found", id)
	}
	if err != nil {
		return model.Event{}, errdef.NewStorage("get event %d: %w", id, err)
	}
	return s.toEvent(rec), nil
}

// overlapping restricts q to events whose [start_time, end_time] intersects
// [start, end]: starts inside, ends inside, or spans the whole window.
func overlapping(q *gorm.DB, start, end time.Time) *gorm.DB {
	a, b := toUnix(start), toUnix(end)
	return q.Where("((start_time BETWEEN ? AND ?) OR (end_time BETWEEN ? AND ?) OR (start_time <= ? AND end_time >= ?))",
		a, b, a, b, a, b)
}

// GetByDateRange returns every event overlapping [start, end], ordered by
// start time.
func (s *Store) GetByDateRange(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	var rows []eventRecord
	q := overlapping(s.db.WithContext(ctx), start, end)
	if err := q.Order("start_time asc, id asc").Find(&rows).Error; err != nil {
		return nil, errdef.NewStorage("query events by range: %w", err)
	}
	return s.toEvents(rows), nil
}

// Range is an inclusive time window.
type Range struct {
	Start time.Time
	End   time.Time
}

// Search returns events whose title, description or location contains term
// (case-insensitive), optionally restricted to events overlapping within.
func (s *Store) Search(ctx context.Context, term string, within *Range) ([]model.Event, error) {
	q := s.db.WithContext(ctx)
	if within != nil {
		q = overlapping(q, within.Start, within.End)
	}
	var rows []eventRecord
	if err := q.Order("start_time asc, id asc").Find(&rows).Error; err != nil {
		return nil, errdef.NewStorage("search events: %w", err)
	}

	// SQLite's LIKE and lower() only fold ASCII, so matching happens here.
	needle := strings.ToLower(term)
	out := make([]model.Event, 0)
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Title), needle) ||
			strings.Contains(strings.ToLower(r.Description), needle) ||
			strings.Contains(strings.ToLower(r.Location), needle) {
			out = append(out, s.toEvent(r))
		}
	}
	return out, nil
}

// GetUpcoming returns events starting within the next minutesAhead minutes.
func (s *Store) GetUpcoming(ctx context.Context, minutesAhead int) ([]model.Event, error) {
	now := s.now()
	until := now.Add(time.Duration(minutesAhead) * time.Minute)

	var rows []eventRecord
	err := s.db.WithContext(ctx).
		Where("start_time BETWEEN ? AND ?", toUnix(now), toUnix(until)).
		Order("start_time asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, errdef.NewStorage("query upcoming events: %w", err)
	}
	return s.toEvents(rows), nil
}

// ListRecurring returns recurring events whose first occurrence starts at
// or before until.
func (s *Store) ListRecurring(ctx context.Context, until time.Time) ([]model.Event, error) {
	var rows []eventRecord
	err := s.db.WithContext(ctx).
		Where("is_recurring = ? AND start_time <= ?", true, toUnix(until)).
		Order("start_time asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, errdef.NewStorage("query recurring events: %w", err)
	}
	return s.toEvents(rows), nil
}

func (s *Store) appendHistory(tx *gorm.DB, eventID int64, action model.HistoryAction, details string) error {
	rec := historyRecord{
		EventID:   eventID,
		Action:    string(action),
		Timestamp: toUnix(s.now()),
		Details:   details,
	}
	if err := tx.Create(&rec).Error; err != nil {
		return fmt.Errorf("append %s history for event %d: %w", action, eventID, err)
	}
	return nil
}

// GetHistory returns all history entries for eventID, most recent first.
// Entries survive the deletion of their event.
func (s *Store) GetHistory(ctx context.Context, eventID int64) ([]model.HistoryEntry, error) {
	var rows []historyRecord
	err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("timestamp desc, id desc").
		Find(&rows).Error
	if err != nil {
		return nil, errdef.NewStorage("query history for event %d: %w", eventID, err)
	}
	out := make([]model.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toHistory(r))
	}
	return out, nil
}

// GetSetting returns the value stored under key and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var rec settingRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errdef.NewStorage("get setting %s: %w", key, err)
	}
	return rec.Value, true, nil
}

// SetSetting inserts or overwrites key. Known keys are validated.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}
	rec := settingRecord{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&rec).Error
	if err != nil {
		return errdef.NewStorage("set setting %s: %w", key, err)
	}
	return nil
}

// Settings returns every stored setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	var rows []settingRecord
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, errdef.NewStorage("list settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// SettingKeys returns the keys of m in sorted order.
func SettingKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NotificationLead reads notification_time (minutes). Missing or invalid
// values fall back to DefaultNotificationLead.
func (s *Store) NotificationLead(ctx context.Context) (time.Duration, error) {
	v, ok, err := s.GetSetting(ctx, SettingNotificationTime)
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultNotificationLead, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		appLog.Info("ignoring invalid notification_time setting", "value", v)
		return DefaultNotificationLead, nil
	}
	return time.Duration(n) * time.Minute, nil
}
