package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/limaJavier/timetabler/pkg/model"
)

const (
	keyPrefix  = "timetabler:timetable:"
	defaultTTL = time.Hour
)

// LookupRecorder is told about every cache lookup; *metrics.Metrics implements it
type LookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// TimetableCache memoises generated timetables by the digest of everything that determines them
type TimetableCache struct {
	repo     Repository
	recorder LookupRecorder
	ttl      time.Duration
	logger   *zap.Logger
}

func NewTimetableCache(repo Repository, recorder LookupRecorder, ttl time.Duration, logger *zap.Logger) *TimetableCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableCache{repo: repo, recorder: recorder, ttl: ttl, logger: logger}
}

// Digest hashes the input together with the options that shape the search
func Digest(raw model.RawModelInput, options model.Options) (string, error) {
	payload, err := json.Marshal(struct {
		Input      model.RawModelInput `json:"input"`
		Strategy   model.Strategy      `json:"strategy"`
		Model      model.ModelOptions  `json:"model"`
		StepBudget uint64              `json:"stepBudget"`
		TimeBudget time.Duration       `json:"timeBudget"`
	}{raw, options.Strategy, options.Model, options.Search.StepBudget, options.Search.TimeBudget})
	if err != nil {
		return "", fmt.Errorf("digest input: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached timetable of the digest. Lookup failures other than a miss are logged and
// reported as a miss
func (c *TimetableCache) Get(ctx context.Context, digest string) (model.Timetable, bool) {
	if c == nil {
		return model.Timetable{}, false
	}
	var timetable model.Timetable
	err := c.repo.Get(ctx, keyPrefix+digest, &timetable)
	hit := err == nil
	if c.recorder != nil {
		c.recorder.RecordCacheLookup(hit)
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("cache get failed", zap.String("digest", digest), zap.Error(err))
	}
	return timetable, hit
}

// Put stores the timetable; results holding an exhausted division are skipped
func (c *TimetableCache) Put(ctx context.Context, digest string, timetable model.Timetable) bool {
	if c == nil {
		return false
	}
	exhausted := lo.ContainsBy(timetable.Divisions, func(division model.DivisionTimetable) bool {
		return division.Status == model.StatusExhausted
	})
	if exhausted {
		return false
	}
	if err := c.repo.Set(ctx, keyPrefix+digest, timetable, c.ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("digest", digest), zap.Error(err))
		return false
	}
	return true
}
