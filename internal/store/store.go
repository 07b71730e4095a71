// Package store 提供基于 Badger 的订单记录持久化。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"market-maker-go/order"
)

const keyPrefix = "order/"

// Options 打开存储的参数。Path 为空时使用内存模式（测试、模拟盘）。
type Options struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

// Store 实现 order.Repository，记录以 JSON 保存在 order/<exchange>/<PAIR>/<id> 键下。
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ order.Repository = (*Store)(nil)

func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	path := strings.TrimSpace(opts.Path)
	inMemory := opts.InMemory || path == ""
	if inMemory {
		path = ""
	}
	bopts := badger.DefaultOptions(path).
		WithInMemory(inMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(badgerLogger{logger.Sugar()})
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open order store %q: %w", path, err)
	}
	logger.Info("order store opened", zap.String("path", path), zap.Bool("in_memory", inMemory))
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func recordKey(exchange, pair, id string) []byte {
	return []byte(keyPrefix + order.RecordKey(exchange, pair, id))
}

// scanPrefix 交易所和交易对都给定时缩小扫描范围。
func scanPrefix(f order.Filter) []byte {
	switch {
	case f.Exchange != "" && f.Pair != "":
		return []byte(keyPrefix + order.RecordKey(f.Exchange, f.Pair, ""))
	case f.Exchange != "":
		return []byte(keyPrefix + strings.ToLower(f.Exchange) + "/")
	default:
		return []byte(keyPrefix)
	}
}

// Find 按键序返回匹配的记录。
func (s *Store) Find(ctx context.Context, f order.Filter) ([]*order.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", order.ErrStore, err)
	}
	var res []*order.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = scanPrefix(f)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var r order.Record
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			if f.Matches(&r) {
				res = append(res, &r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", order.ErrStore, err)
	}
	return res, nil
}

// Persist 校验后整条覆盖写入。
func (s *Store) Persist(ctx context.Context, r *order.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", order.ErrStore, err)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", order.ErrStore, r.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(r.Exchange, r.Pair, r.ID), val)
	})
	if err != nil {
		return fmt.Errorf("%w: persist %s: %v", order.ErrStore, r.ID, err)
	}
	return nil
}

// Get 读取单条记录，不存在时返回 false。
func (s *Store) Get(ctx context.Context, exchange, pair, id string) (*order.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", order.ErrStore, err)
	}
	var r order.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(exchange, pair, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", order.ErrStore, id, err)
	}
	return &r, true, nil
}

// badgerLogger 把 Badger 的日志接到 zap 上。
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
