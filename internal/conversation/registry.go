package conversation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/tradevoice/internal/domain"
)

// Loader returns the persisted entries of a conversation in order.
type Loader interface {
	ListEntries(ctx context.Context, conversationID string) ([]domain.EntryRecord, error)
}

// Registry owns one Log per conversation ID. Handlers receive it by
// injection; there is no package-level log.
type Registry struct {
	now    func() time.Time
	sink   Enqueuer
	loader Loader
	logger *slog.Logger

	mu   sync.Mutex
	logs map[string]*slot
}

// slot hydrates one log exactly once, outside the registry lock.
type slot struct {
	once sync.Once
	log  *Log
}

// Option configures a Registry.
type Option func(*Registry)

// WithSink forwards every appended entry to sink.
func WithSink(sink Enqueuer) Option {
	return func(r *Registry) { r.sink = sink }
}

// WithLoader seeds each log from previously persisted entries the first
// time it is opened.
func WithLoader(loader Loader) Option {
	return func(r *Registry) { r.loader = loader }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger sets the logger used for append lines.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		now:    time.Now,
		logger: slog.Default(),
		logs:   make(map[string]*slot),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Get returns the log for id, creating it on first use. An empty id selects
// domain.DefaultConversationID. Hydration from the loader runs once per id
// and only blocks callers of that id.
func (r *Registry) Get(ctx context.Context, id string) *Log {
	if id == "" {
		id = domain.DefaultConversationID
	}

	r.mu.Lock()
	s, ok := r.logs[id]
	if !ok {
		s = &slot{}
		r.logs[id] = s
	}
	r.mu.Unlock()

	s.once.Do(func() {
		s.log = newLog(id, r.now, r.sink, r.logger, r.load(context.WithoutCancel(ctx), id))
	})
	return s.log
}

// History returns the entries of id without opening a log for it. Unknown
// conversations read through to the loader, or come back empty.
func (r *Registry) History(ctx context.Context, id string) []domain.LogEntry {
	if id == "" {
		id = domain.DefaultConversationID
	}

	r.mu.Lock()
	_, ok := r.logs[id]
	r.mu.Unlock()
	if ok {
		return r.Get(ctx, id).ReadAll()
	}

	entries := r.load(ctx, id)
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return entries
}

func (r *Registry) load(ctx context.Context, id string) []domain.LogEntry {
	if r.loader == nil {
		return nil
	}
	records, err := r.loader.ListEntries(ctx, id)
	if err != nil {
		r.logger.Warn("failed to load persisted conversation, starting empty",
			"conversation_id", id,
			"error", err,
		)
		return nil
	}
	seed := make([]domain.LogEntry, 0, len(records))
	for _, rec := range records {
		seed = append(seed, rec.Entry)
	}
	if len(seed) > 0 {
		r.logger.Info("Conversation restored", "conversation_id", id, "entries", len(seed))
	}
	return seed
}

// IDs returns the conversation IDs opened in this process, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.logs))
	for id := range r.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
