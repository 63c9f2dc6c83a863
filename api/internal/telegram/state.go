package telegram

import (
	"sync"
	"time"

	"paperai/api/internal/gateway"
)

const (
	debounce = 1200 * time.Millisecond
	// больше файлов в одном альбоме не собираем
	maxBatchFiles = 10
)

// chatStore: chatID -> Settings
type chatStore struct{ m sync.Map }

func (c *chatStore) load(chatID int64) (Settings, bool) {
	v, ok := c.m.Load(chatID)
	if !ok {
		return Settings{}, false
	}
	return v.(Settings), true
}

func (c *chatStore) store(chatID int64, s Settings) { c.m.Store(chatID, s) }
func (c *chatStore) reset(chatID int64)             { c.m.Delete(chatID) }

type fileBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu    sync.Mutex
	files []gateway.InboundFile
	timer *time.Timer
	done  bool
}

// batchStore: key -> *fileBatch
type batchStore struct{ m sync.Map }

// add appends f to the batch under key and (re)arms its flush timer. It
// reports how many files the batch holds after the append; 0 means the
// batch is full and f was dropped.
func (s *batchStore) add(key string, chatID int64, f gateway.InboundFile, wait time.Duration, flush func(*fileBatch)) int {
	for {
		v, _ := s.m.LoadOrStore(key, &fileBatch{ChatID: chatID, Key: key})
		b := v.(*fileBatch)

		b.mu.Lock()
		if b.done {
			// батч уже ушёл в обработку, начинаем новый
			b.mu.Unlock()
			s.m.CompareAndDelete(key, b)
			continue
		}
		if len(b.files) >= maxBatchFiles {
			b.mu.Unlock()
			return 0
		}
		b.files = append(b.files, f)
		n := len(b.files)
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(wait, func() { flush(b) })
		b.mu.Unlock()
		return n
	}
}

// take detaches the batch and returns its files; a second call returns nil.
func (s *batchStore) take(b *fileBatch) []gateway.InboundFile {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil
	}
	b.done = true
	s.m.CompareAndDelete(b.Key, b)
	return append([]gateway.InboundFile(nil), b.files...)
}
