package dispatch_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

/*────────────────────  インメモリスタブ  ────────────────────*/

type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type fakeFeed struct {
	mu      sync.Mutex
	entries []entity.FeedEntry
	err     error
	calls   int
}

func (f *fakeFeed) Fetch(_ context.Context) ([]entity.FeedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]entity.FeedEntry(nil), f.entries...), nil
}

func (f *fakeFeed) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memWatches struct {
	mu     sync.Mutex
	titles []*entity.WatchTitle
	err    error
}

func newWatches(titles ...string) *memWatches {
	w := &memWatches{}
	for _, t := range titles {
		w.titles = append(w.titles, &entity.WatchTitle{Title: t})
	}
	return w
}

func (w *memWatches) Add(_ context.Context, title string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.titles = append(w.titles, &entity.WatchTitle{Title: title})
	return true, nil
}

func (w *memWatches) Remove(_ context.Context, _ string) (bool, error) { return false, nil }

func (w *memWatches) List(_ context.Context) ([]*entity.WatchTitle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.titles, w.err
}

type memLedger struct {
	mu        sync.Mutex
	records   map[string]*entity.DispatchRecord
	existsErr error
	recordErr error
}

func newLedger() *memLedger {
	return &memLedger{records: map[string]*entity.DispatchRecord{}}
}

func (l *memLedger) Exists(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.existsErr != nil {
		return false, l.existsErr
	}
	_, ok := l.records[key]
	return ok, nil
}

func (l *memLedger) Record(_ context.Context, rec *entity.DispatchRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	if _, ok := l.records[rec.EntryKey]; ok {
		return entity.ErrAlreadyDispatched
	}
	l.records[rec.EntryKey] = rec
	return nil
}

func (l *memLedger) Get(_ context.Context, key string) (*entity.DispatchRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[key]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return rec, nil
}

func (l *memLedger) List(_ context.Context, f repository.ListFilter) ([]*entity.DispatchRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*entity.DispatchRecord, 0, len(l.records))
	for _, r := range l.records {
		if f.Outcome == "" || r.Outcome == f.Outcome {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if n := f.EffectiveLimit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (l *memLedger) Count(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.records)), nil
}

func (l *memLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, title, link string) entity.Outcome
}

func (g *fakeGateway) Submit(ctx context.Context, title, link string) entity.Outcome {
	g.mu.Lock()
	g.calls = append(g.calls, link)
	fn := g.fn
	g.mu.Unlock()
	if fn == nil {
		return entity.Succeeded("artifact-"+title, "")
	}
	return fn(ctx, title, link)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type fakeLinks struct{}

func (fakeLinks) MakeShareableLink(id string) string { return "https://t.me/relay_bot?start=" + id }

type fakeNotifier struct {
	mu      sync.Mutex
	records []*entity.DispatchRecord
}

func (n *fakeNotifier) NotifyDispatch(_ context.Context, rec *entity.DispatchRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
	return nil
}

func (n *fakeNotifier) Records() []*entity.DispatchRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*entity.DispatchRecord(nil), n.records...)
}
