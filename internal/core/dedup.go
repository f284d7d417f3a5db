package core

import (
	"container/list"
	"fmt"

	"github.com/rs/zerolog"

	"SpotLedger/internal/observability"
)

// DBDedupChecker is the cold-path lookup against the durable
// processed-message keyspace.
type DBDedupChecker interface {
	IsProcessed(msgType, messageID string) (bool, error)
}

// MessageDeduplicator implements two-tier message deduplication: an
// in-memory LRU for the hot path, the durable keyspace for the cold path.
// A hit means the external operation id was already applied and the caller
// short-circuits before constructing a transaction buffer.
type MessageDeduplicator struct {
	lru       *dedupLRU
	dbChecker DBDedupChecker
	log       zerolog.Logger
	metrics   *observability.Metrics
}

func NewMessageDeduplicator(capacity int, dbChecker DBDedupChecker, log zerolog.Logger, metrics *observability.Metrics) *MessageDeduplicator {
	return &MessageDeduplicator{
		lru:       newDedupLRU(capacity),
		dbChecker: dbChecker,
		log:       log,
		metrics:   metrics,
	}
}

// IsDuplicate checks both tiers. A DB error is conservative: the message is
// treated as new rather than letting a storage issue block processing —
// the unique constraint on the keyspace still rejects a true replay at
// persist time.
func (d *MessageDeduplicator) IsDuplicate(msgType, messageID string) bool {
	key := compositeKey(msgType, messageID)

	if d.lru.contains(key) {
		d.recordDuplicate(msgType, "lru")
		return true
	}

	if d.dbChecker != nil {
		processed, err := d.dbChecker.IsProcessed(msgType, messageID)
		if err != nil {
			d.log.Warn().Err(err).Str("type", msgType).Msg("dedup cold lookup failed")
			return false
		}
		if processed {
			d.recordDuplicate(msgType, "postgres")
			d.lru.add(key)
			return true
		}
	}

	return false
}

// MarkProcessed records a message id after its transaction persisted.
func (d *MessageDeduplicator) MarkProcessed(msgType, messageID string) {
	d.lru.add(compositeKey(msgType, messageID))
	if d.metrics != nil {
		d.metrics.DedupLRUSize.Set(float64(d.lru.size()))
	}
}

// Warm loads recent composite keys ("type:id") into the LRU so a restart
// avoids cold-path lookups for recently processed messages.
func (d *MessageDeduplicator) Warm(keys []string) {
	d.lru.warm(keys)
	if d.metrics != nil {
		d.metrics.DedupLRUSize.Set(float64(d.lru.size()))
	}
}

func (d *MessageDeduplicator) recordDuplicate(msgType, tier string) {
	if d.metrics != nil {
		d.metrics.DedupDuplicates.WithLabelValues(msgType, tier).Inc()
	}
}

func compositeKey(msgType, messageID string) string {
	return fmt.Sprintf("%s:%s", msgType, messageID)
}

// --- LRU ---

// dedupLRU is not thread-safe; it is only touched from the single-writer
// processing loop.
type dedupLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
}

type dedupEntry struct {
	key string
}

func newDedupLRU(capacity int) *dedupLRU {
	return &dedupLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

func (l *dedupLRU) contains(key string) bool {
	elem, ok := l.cache[key]
	if ok {
		l.lruList.MoveToFront(elem)
	}
	return ok
}

func (l *dedupLRU) add(key string) {
	if elem, ok := l.cache[key]; ok {
		l.lruList.MoveToFront(elem)
		return
	}

	elem := l.lruList.PushFront(&dedupEntry{key: key})
	l.cache[key] = elem

	if l.lruList.Len() > l.capacity {
		l.evictOldest()
	}
}

func (l *dedupLRU) evictOldest() {
	elem := l.lruList.Back()
	if elem != nil {
		l.lruList.Remove(elem)
		delete(l.cache, elem.Value.(*dedupEntry).key)
	}
}

func (l *dedupLRU) warm(keys []string) {
	for _, key := range keys {
		l.add(key)
	}
}

func (l *dedupLRU) size() int {
	return l.lruList.Len()
}
