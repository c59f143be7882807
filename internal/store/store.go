// Package store provides the transaction boundary for every board mutation.
//
// A Tx can only be obtained inside InTx, so anything that accepts a Tx is
// guaranteed to run inside a transaction that commits or rolls back as a
// whole.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/db"
	"github.com/zulandar/boardcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultTxTimeout  = 5 * time.Second
	defaultMaxRetries = 3
	retryBackoff      = 20 * time.Millisecond
)

// Tx is a gorm handle scoped to one open transaction.
type Tx struct {
	db *gorm.DB
}

// DB returns the transaction-scoped gorm handle.
func (t Tx) DB() *gorm.DB { return t.db }

// Options tunes transaction behaviour.
type Options struct {
	TxTimeout  time.Duration
	MaxRetries int
	Logger     *log.Logger
}

// Store wraps a gorm connection with the transaction policy.
type Store struct {
	db         *gorm.DB
	txTimeout  time.Duration
	maxRetries int
	logger     *log.Logger
}

// New creates a Store. Zero option values fall back to defaults.
func New(gormDB *gorm.DB, opts Options) *Store {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultTxTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Store{
		db:         gormDB,
		txTimeout:  opts.TxTimeout,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
	}
}

// DB returns the underlying connection for read-only queries.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// InTx runs fn inside a transaction bounded by the store's timeout.
//
// Domain errors returned by fn roll back and are returned unchanged.
// Deadlocks and busy conditions replay the whole transaction up to the
// retry budget. Everything else, including timeouts, rolls back and is
// reported as apperr.ErrStorageUnavailable.
func (s *Store) InTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(log.Fields{"op": op, "attempt": attempt}).
				Debug("store: retrying transaction after conflict")
			select {
			case <-ctx.Done():
				return apperr.Unavailable(op, ctx.Err())
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}

		err = s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if apperr.IsDomain(err) || errors.Is(err, apperr.ErrInvariantViolation) {
			return err
		}
		if db.IsTimeout(err) {
			s.logger.WithFields(log.Fields{"op": op, "error": err}).Warn("store: transaction timed out")
			return apperr.Unavailable(op, err)
		}
		if !db.IsRetryable(err) {
			break
		}
	}
	s.logger.WithFields(log.Fields{"op": op, "error": err}).Error("store: transaction failed")
	return apperr.Unavailable(op, err)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Tx{db: tx})
	})
}

// LockForUpdate returns a query that takes row locks on what it reads.
// Dialects without row locks (SQLite) drop the clause; the single-writer
// connection serialises them instead.
func LockForUpdate(q *gorm.DB) *gorm.DB {
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockForShare returns a query that reads the latest committed rows and
// blocks concurrent writers to them.
func LockForShare(q *gorm.DB) *gorm.DB {
	return q.Clauses(clause.Locking{Strength: "SHARE"})
}

// LockLists locks the given list rows in ascending id order and returns
// them keyed by id. Missing ids are absent from the map.
func LockLists(tx Tx, ids ...string) (map[string]models.List, error) {
	uniq := make(map[string]bool, len(ids))
	var sorted []string
	for _, id := range ids {
		if id != "" && !uniq[id] {
			uniq[id] = true
			sorted = append(sorted, id)
		}
	}
	sort.Strings(sorted)

	out := make(map[string]models.List, len(sorted))
	for _, id := range sorted {
		var l models.List
		err := LockForUpdate(tx.db).Where("id = ?", id).Take(&l).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = l
	}
	return out, nil
}

// BumpGraphRevision takes the dependency graph lock for the rest of the
// transaction.
func BumpGraphRevision(tx Tx) error {
	res := tx.db.Model(&models.GraphRevision{}).
		Where("id = ?", db.GraphRevisionID).
		Update("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return tx.db.Create(&models.GraphRevision{ID: db.GraphRevisionID, Version: 1}).Error
	}
	return nil
}
