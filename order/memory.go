package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Repository 是订单记录的持久化接口；引擎负责生命周期决策，存储只负责落盘。
type Repository interface {
	// Find 返回匹配 f 的记录副本，顺序对同一快照是确定的。
	Find(ctx context.Context, f Filter) ([]*Record, error)
	// Persist 插入或覆盖一条记录。
	Persist(ctx context.Context, r *Record) error
}

// RecordKey 生成记录在存储中的唯一键。
func RecordKey(exchange, pair, id string) string {
	return strings.ToLower(exchange) + "/" + strings.ToUpper(pair) + "/" + id
}

// MemoryRepository 内存版记录存储，按插入顺序迭代。
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*Record)}
}

func (m *MemoryRepository) Find(ctx context.Context, f Filter) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*Record, 0)
	for _, key := range m.order {
		r := m.records[key]
		if f.Matches(r) {
			res = append(res, r.Clone())
		}
	}
	return res, nil
}

func (m *MemoryRepository) Persist(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	key := RecordKey(r.Exchange, r.Pair, r.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		m.order = append(m.order, key)
	}
	m.records[key] = r.Clone()
	return nil
}

// Get 按键读取单条记录（拷贝）。
func (m *MemoryRepository) Get(exchange, pair, id string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[RecordKey(exchange, pair, id)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Len 返回记录总数（含终态）。
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
