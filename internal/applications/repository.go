// Package applications persists decided merchant applications. Postgres is
// the system of record; when it is unavailable records are kept in process
// memory. Statuses are cached in Redis and a search document is indexed in
// Elasticsearch; both are best effort.
package applications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "merchant-onboarding/internal/common/errors"
	"merchant-onboarding/internal/common/logger"
	"merchant-onboarding/internal/models"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS merchant_applications (
	application_id      VARCHAR(64) PRIMARY KEY,
	personal_data       JSONB,
	business_data       JSONB,
	processed_documents JSONB,
	risk_score          INTEGER,
	risk_level          VARCHAR(20),
	status              VARCHAR(50),
	terms               JSONB,
	processing_time     VARCHAR(50),
	created_at          TIMESTAMPTZ NOT NULL,
	processed_at        TIMESTAMPTZ
)`

const insertQuery = `
INSERT INTO merchant_applications (
	application_id, personal_data, business_data, processed_documents,
	risk_score, risk_level, status, terms, processing_time, created_at, processed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

const selectQuery = `
SELECT application_id, personal_data, business_data, processed_documents,
	risk_score, risk_level, status, terms, processing_time, created_at
FROM merchant_applications WHERE application_id = $1`

// Indexer writes a search document. *database.ElasticsearchClient satisfies it.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

type Options struct {
	DB       *sql.DB
	Cache    *redis.Client
	Indexer  Indexer
	Index    string
	CacheTTL time.Duration
}

type Repository struct {
	db      *sql.DB
	cache   *redis.Client
	indexer Indexer
	index   string
	ttl     time.Duration
	logger  logger.Logger

	mu     sync.RWMutex
	memory map[string]models.ApplicationRecord
}

// SaveResult reports where a record ended up.
type SaveResult struct {
	SavedToDatabase bool
	StorageMode     string
}

func NewRepository(opts Options, log logger.Logger) *Repository {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Repository{
		db:      opts.DB,
		cache:   opts.Cache,
		indexer: opts.Indexer,
		index:   opts.Index,
		ttl:     ttl,
		logger:  log.WithFields(map[string]interface{}{"component": "applications"}),
		memory:  make(map[string]models.ApplicationRecord),
	}
}

// EnsureSchema creates the applications table when a database is configured.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schemaDDL); err != nil {
		return apperrors.NewQueryExecutionFailedError("create_table", err)
	}
	return nil
}

// Save stores rec in Postgres, falling back to memory. It does not fail: the
// result says which store holds the record.
func (r *Repository) Save(ctx context.Context, rec models.ApplicationRecord) SaveResult {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	result := SaveResult{StorageMode: models.StorageModeMemory}
	if r.db != nil {
		if err := r.insert(ctx, rec); err != nil {
			r.logger.Warn("Database insert failed, keeping application in memory", map[string]interface{}{
				"applicationId": rec.ApplicationID,
				"error":         err.Error(),
			})
		} else {
			result = SaveResult{SavedToDatabase: true, StorageMode: models.StorageModeDatabase}
		}
	}

	if !result.SavedToDatabase {
		r.mu.Lock()
		r.memory[rec.ApplicationID] = rec
		r.mu.Unlock()
	}

	r.cacheRecord(ctx, rec)
	r.indexRecord(ctx, rec)

	r.logger.Info("Application stored", map[string]interface{}{
		"applicationId": rec.ApplicationID,
		"storageMode":   result.StorageMode,
	})
	return result
}

func (r *Repository) insert(ctx context.Context, rec models.ApplicationRecord) error {
	personal, err := json.Marshal(rec.PersonalData)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	business, err := json.Marshal(rec.BusinessData)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	documents, err := json.Marshal(rec.ProcessedDocuments)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	var terms []byte
	if rec.Terms != nil {
		if terms, err = json.Marshal(rec.Terms); err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}
	}

	_, err = r.db.ExecContext(ctx, insertQuery,
		rec.ApplicationID,
		personal,
		business,
		documents,
		rec.RiskScore,
		rec.RiskLevel,
		rec.ApprovalStatus,
		terms,
		rec.ProcessingTime,
		rec.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get looks the application up in the cache, then Postgres, then memory. The
// returned source names the store that holds the record; a cache hit reports
// the store behind it.
func (r *Repository) Get(ctx context.Context, applicationID string) (models.ApplicationRecord, string, error) {
	if rec, ok := r.cached(ctx, applicationID); ok {
		return rec, r.heldBy(applicationID), nil
	}

	if r.db != nil {
		rec, err := r.selectRecord(ctx, applicationID)
		switch {
		case err == nil:
			r.cacheRecord(ctx, rec)
			return rec, models.SourceDatabase, nil
		case errors.Is(err, sql.ErrNoRows):
		default:
			r.logger.Warn("Database lookup failed", map[string]interface{}{
				"applicationId": applicationID,
				"error":         err.Error(),
			})
		}
	}

	r.mu.RLock()
	rec, ok := r.memory[applicationID]
	r.mu.RUnlock()
	if ok {
		return rec, models.SourceMemoryFallback, nil
	}

	return models.ApplicationRecord{}, "", apperrors.NewApplicationNotFoundError(applicationID)
}

func (r *Repository) heldBy(applicationID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.memory[applicationID]; ok {
		return models.SourceMemoryFallback
	}
	return models.SourceDatabase
}

func (r *Repository) selectRecord(ctx context.Context, applicationID string) (models.ApplicationRecord, error) {
	var (
		rec                               models.ApplicationRecord
		personal, business, docs, terms   []byte
		riskScore                         sql.NullInt64
		riskLevel, status, processingTime sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectQuery, applicationID).Scan(
		&rec.ApplicationID, &personal, &business, &docs,
		&riskScore, &riskLevel, &status, &terms, &processingTime, &rec.CreatedAt,
	)
	if err != nil {
		return models.ApplicationRecord{}, err
	}

	rec.RiskScore = int(riskScore.Int64)
	rec.RiskLevel = riskLevel.String
	rec.ApprovalStatus = status.String
	rec.ProcessingTime = processingTime.String

	if err := unmarshalColumns(map[string]columnTarget{
		"personal_data":       {personal, &rec.PersonalData},
		"business_data":       {business, &rec.BusinessData},
		"processed_documents": {docs, &rec.ProcessedDocuments},
	}); err != nil {
		return models.ApplicationRecord{}, err
	}
	if len(terms) > 0 && string(terms) != "null" {
		var t models.Terms
		if err := json.Unmarshal(terms, &t); err != nil {
			return models.ApplicationRecord{}, fmt.Errorf("decode terms: %w", err)
		}
		rec.Terms = &t
	}
	return rec, nil
}

type columnTarget struct {
	raw []byte
	dst interface{}
}

func unmarshalColumns(cols map[string]columnTarget) error {
	for name, col := range cols {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return nil
}

func cacheKey(applicationID string) string {
	return "application:" + applicationID
}

func (r *Repository) cached(ctx context.Context, applicationID string) (models.ApplicationRecord, bool) {
	if r.cache == nil {
		return models.ApplicationRecord{}, false
	}
	val, err := r.cache.Get(ctx, cacheKey(applicationID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("Cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return models.ApplicationRecord{}, false
	}
	var rec models.ApplicationRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return models.ApplicationRecord{}, false
	}
	return rec, true
}

func (r *Repository) cacheRecord(ctx context.Context, rec models.ApplicationRecord) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(rec.ApplicationID), data, r.ttl).Err(); err != nil {
		r.logger.Debug("Cache write failed", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         err.Error(),
		})
	}
}

// searchDocument omits identity numbers and bank details.
func searchDocument(rec models.ApplicationRecord) map[string]interface{} {
	return map[string]interface{}{
		"application_id":  rec.ApplicationID,
		"business_name":   models.StringField(rec.BusinessData, "businessName"),
		"business_type":   models.StringField(rec.BusinessData, "businessType"),
		"industry":        models.StringField(rec.BusinessData, "industry"),
		"state":           models.StringField(rec.PersonalData, "state"),
		"approval_status": rec.ApprovalStatus,
		"risk_score":      rec.RiskScore,
		"risk_level":      rec.RiskLevel,
		"created_at":      rec.CreatedAt.Format(time.RFC3339),
	}
}

func (r *Repository) indexRecord(ctx context.Context, rec models.ApplicationRecord) {
	if r.indexer == nil {
		return
	}
	if err := r.indexer.IndexDocument(ctx, r.index, rec.ApplicationID, searchDocument(rec)); err != nil {
		r.logger.Warn("Search indexing failed", map[string]interface{}{
			"applicationId": rec.ApplicationID,
			"error":         apperrors.NewSearchIndexFailedError(r.index, err).Error(),
		})
	}
}
