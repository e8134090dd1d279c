package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"cryptocagua/dao"
	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
)

// fakeRemote is an in-memory sheet. Setting err makes every call fail.
type fakeRemote struct {
	mu    sync.Mutex
	rows  []model.Offer
	err   error
	calls []string
	// block, when set, holds Save until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Read(context.Context) ([]model.Offer, error) {
	if err := f.record("read"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Offer(nil), f.rows...), nil
}

func (f *fakeRemote) Save(_ context.Context, o model.Offer) (sheets.Ack, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err := f.record("save:" + o.ID); err != nil {
		return sheets.Ack{}, err
	}
	f.mu.Lock()
	f.rows = append(f.rows, o)
	f.mu.Unlock()
	return sheets.Ack{StatusCode: 200, Confirmed: true}, nil
}

func (f *fakeRemote) UpdateStatus(_ context.Context, id string, status model.OfferStatus) (sheets.Ack, error) {
	if err := f.record("updateStatus:" + id); err != nil {
		return sheets.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows[i].Status = status
		}
	}
	return sheets.Ack{StatusCode: 200, Confirmed: true}, nil
}

func (f *fakeRemote) Delete(_ context.Context, id string) (sheets.Ack, error) {
	if err := f.record("delete:" + id); err != nil {
		return sheets.Ack{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows[:0]
	for _, o := range f.rows {
		if o.ID != id {
			out = append(out, o)
		}
	}
	f.rows = out
	return sheets.Ack{StatusCode: 200, Confirmed: true}, nil
}

func (f *fakeRemote) Ping(context.Context) sheets.Diagnosis {
	return sheets.Diagnose(f.record("ping"))
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Offer
	// block, when set, holds every send until it is closed.
	block chan struct{}
}

func (n *fakeNotifier) OfferSubmitted(ctx context.Context, o model.Offer) error {
	if n.block != nil {
		select {
		case <-n.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, o)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type env struct {
	store    *dao.MemoryStore
	cache    *dao.OfferCache
	settings *dao.SettingsRepository
	remote   *fakeRemote
	notifier *fakeNotifier
	offers   *OfferUsecase
	admin    *AdminUsecase
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    dao.NewMemoryStore(),
		remote:   &fakeRemote{},
		notifier: &fakeNotifier{},
	}
	e.cache = dao.NewOfferCache(e.store)
	e.settings = dao.NewSettingsRepository(e.store, "")
	e.offers = NewOfferUsecase(e.cache, e.settings, e.remote, e.notifier, quietLogger())
	e.offers.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	e.admin = NewAdminUsecase(e.settings, e.remote, "1234", true, quietLogger())
	return e
}

func (e *env) login(t *testing.T) {
	t.Helper()
	ok, err := e.admin.VerifyPin(context.Background(), "1234")
	if err != nil || !ok {
		t.Fatalf("login failed: ok=%v err=%v", ok, err)
	}
}

func aliceDraft() model.Draft {
	return model.Draft{
		Type:        model.OfferTypeSell,
		Category:    model.CategoryCrypto,
		Title:       "Sell 100 USDT",
		Description: "Fast transfer",
		Asset:       "USDT",
		Price:       "1.00",
		Location:    "Caracas",
		Nickname:    "alice",
		ContactInfo: "5551234567",
	}
}
