package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"cryptocagua/dao"
	"cryptocagua/model"
	"cryptocagua/pkg/contact"
	"cryptocagua/pkg/notify"
	"cryptocagua/pkg/sheets"
)

// ViewMode selects which offers an admin is looking at.
type ViewMode string

const (
	ViewPublic  ViewMode = "PUBLIC"
	ViewPending ViewMode = "PENDING"
)

type Query struct {
	View   ViewMode
	Search string
}

// Receipt is the result of a lifecycle write. The local change has always
// been applied when a Receipt is returned; RemoteErr says whether the sheet
// took it too.
type Receipt struct {
	Offer     *model.Offer
	Ack       *sheets.Ack
	RemoteErr error
}

// Synced reports whether the sheet acknowledged the write.
func (r Receipt) Synced() bool { return r.Ack != nil && r.RemoteErr == nil }

// LocalOnly reports whether no endpoint is configured.
func (r Receipt) LocalOnly() bool { return errors.Is(r.RemoteErr, sheets.ErrNotConfigured) }

type RefreshResult struct {
	Offers    []model.Offer
	Fresh     bool
	RemoteErr error
}

// notifyTimeout bounds one admin notification, independent of the request
// that created the offer.
const notifyTimeout = 10 * time.Second

type OfferUsecase struct {
	cache    *dao.OfferCache
	settings *dao.SettingsRepository
	remote   RemoteStore
	notifier Notifier
	logger   *slog.Logger
	flight   singleflight.Group
	notifies sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewOfferUsecase(cache *dao.OfferCache, settings *dao.SettingsRepository, remote RemoteStore, notifier Notifier, logger *slog.Logger) *OfferUsecase {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OfferUsecase{
		cache:    cache,
		settings: settings,
		remote:   remote,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
	}
}

// Create stores a new PENDING offer locally, then tries to save it remotely.
// Identical drafts submitted concurrently produce a single offer.
func (u *OfferUsecase) Create(ctx context.Context, d model.Draft) (Receipt, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Receipt{}, err
	}
	v, err, _ := u.flight.Do("create:"+fingerprint(d), func() (interface{}, error) {
		return u.create(ctx, d)
	})
	if err != nil {
		return Receipt{}, err
	}
	return v.(Receipt), nil
}

func (u *OfferUsecase) create(ctx context.Context, d model.Draft) (Receipt, error) {
	if err := u.settings.SaveProfile(ctx, model.Profile{Nickname: d.Nickname, ContactInfo: d.ContactInfo}); err != nil {
		u.logger.Warn("failed to save poster profile", "error", err)
	}

	offer := model.NewOffer(u.newID(), d, u.now())
	if err := u.cache.Insert(ctx, offer); err != nil {
		return Receipt{}, err
	}

	ack, err := u.remote.Save(ctx, offer)
	r := u.receipt(&offer, ack, err, "save", offer.ID)

	u.notifies.Add(1)
	go u.notifyAdmin(offer)
	return r, nil
}

func (u *OfferUsecase) notifyAdmin(offer model.Offer) {
	defer u.notifies.Done()
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := u.notifier.OfferSubmitted(ctx, offer); err != nil {
		u.logger.Warn("failed to notify admin", "id", offer.ID, "error", err)
	}
}

// Wait blocks until every admin notification started by Create has finished.
func (u *OfferUsecase) Wait() {
	u.notifies.Wait()
}

// Approve moves a PENDING offer to APPROVED. Approving twice is not an error.
func (u *OfferUsecase) Approve(ctx context.Context, id string) (Receipt, error) {
	if err := u.requireAdmin(ctx); err != nil {
		return Receipt{}, err
	}
	v, err, _ := u.flight.Do("approve:"+id, func() (interface{}, error) {
		found, err := u.cache.MapStatus(ctx, id, model.StatusApproved)
		if err != nil {
			return Receipt{}, err
		}
		if !found {
			return Receipt{}, ErrOfferNotFound
		}
		offer, err := u.cache.Find(ctx, id)
		if err != nil {
			return Receipt{}, err
		}
		ack, err := u.remote.UpdateStatus(ctx, id, model.StatusApproved)
		return u.receipt(offer, ack, err, "updateStatus", id), nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return v.(Receipt), nil
}

// Delete removes an offer in any state. Deleting an unknown id only forwards
// the delete to the sheet.
func (u *OfferUsecase) Delete(ctx context.Context, id string) (Receipt, error) {
	if err := u.requireAdmin(ctx); err != nil {
		return Receipt{}, err
	}
	return u.remove(ctx, id)
}

// Withdraw lets a poster remove their own offer by proving the contact used
// to publish it.
func (u *OfferUsecase) Withdraw(ctx context.Context, id, contactInfo string) (Receipt, error) {
	offer, err := u.cache.Find(ctx, id)
	if err != nil && !errors.Is(err, dao.ErrCorruptCache) {
		return Receipt{}, err
	}
	if offer == nil {
		return Receipt{}, ErrOfferNotFound
	}
	given := contact.Digits(contactInfo)
	if given == "" || given != contact.Digits(offer.ContactInfo) {
		return Receipt{}, ErrNotOwner
	}
	return u.remove(ctx, id)
}

func (u *OfferUsecase) remove(ctx context.Context, id string) (Receipt, error) {
	v, err, _ := u.flight.Do("delete:"+id, func() (interface{}, error) {
		offer, _ := u.cache.Find(ctx, id)
		if _, err := u.cache.RemoveByID(ctx, id); err != nil {
			return Receipt{}, err
		}
		ack, err := u.remote.Delete(ctx, id)
		return u.receipt(offer, ack, err, "delete", id), nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return v.(Receipt), nil
}

// Refresh replaces the cache with the sheet contents. On any remote failure
// the cached collection is returned unchanged.
func (u *OfferUsecase) Refresh(ctx context.Context) (RefreshResult, error) {
	v, err, _ := u.flight.Do("refresh", func() (interface{}, error) {
		offers, err := u.remote.Read(ctx)
		if err == nil {
			if err := u.cache.ReplaceAll(ctx, offers); err != nil {
				return RefreshResult{}, err
			}
			return RefreshResult{Offers: offers, Fresh: true}, nil
		}

		u.logRemote("read", "", err)
		cached, cerr := u.cache.GetAll(ctx)
		if cerr != nil {
			if !errors.Is(cerr, dao.ErrCorruptCache) {
				return RefreshResult{}, cerr
			}
			u.logger.Warn("discarding unreadable offer cache", "error", cerr)
		}
		return RefreshResult{Offers: cached, RemoteErr: err}, nil
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return v.(RefreshResult), nil
}

// List filters the cached collection for the current viewer.
func (u *OfferUsecase) List(ctx context.Context, q Query) ([]model.Offer, error) {
	admin, err := isAdmin(ctx, u.settings, u.now())
	if err != nil {
		return nil, err
	}
	offers, err := u.cache.GetAll(ctx)
	if err != nil && !errors.Is(err, dao.ErrCorruptCache) {
		return nil, err
	}
	return Filter(offers, admin, q), nil
}

// Get returns one offer if the current viewer may see it.
func (u *OfferUsecase) Get(ctx context.Context, id string) (*model.Offer, error) {
	admin, err := isAdmin(ctx, u.settings, u.now())
	if err != nil {
		return nil, err
	}
	offer, err := u.cache.Find(ctx, id)
	if err != nil && !errors.Is(err, dao.ErrCorruptCache) {
		return nil, err
	}
	if offer == nil || !offer.Visible(admin) {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// ContactLink is the WhatsApp link to the poster, or "" when the offer has no
// usable phone number.
func (u *OfferUsecase) ContactLink(ctx context.Context, id string) (string, error) {
	offer, err := u.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return contact.OfferContactLink(*offer), nil
}

// RatingSuggestion builds the message a buyer sends to the admin to suggest a
// rating. Stored reputation is never changed here.
func (u *OfferUsecase) RatingSuggestion(ctx context.Context, id string, stars int) (string, error) {
	offer, err := u.Get(ctx, id)
	if err != nil {
		return "", err
	}
	phone, err := u.settings.AdminPhone(ctx)
	if err != nil {
		return "", err
	}
	return contact.RatingSuggestionLink(phone, *offer, stars), nil
}

// ReviewRequest is the link a poster uses to ping the admin after submitting.
func (u *OfferUsecase) ReviewRequest(ctx context.Context, title string) (string, error) {
	phone, err := u.settings.AdminPhone(ctx)
	if err != nil {
		return "", err
	}
	return contact.AdminReviewLink(phone, title), nil
}

// ReviewMail is the e-mail alternative to ReviewRequest, or "" when no admin
// e-mail is set.
func (u *OfferUsecase) ReviewMail(ctx context.Context, o model.Offer) (string, error) {
	email, err := u.settings.AdminEmail(ctx)
	if err != nil {
		return "", err
	}
	return contact.MailtoLink(email, "Cryptocagua review: "+o.Title, notify.Message(o)), nil
}

func (u *OfferUsecase) requireAdmin(ctx context.Context) error {
	return requireAdmin(ctx, u.settings, u.now())
}

func (u *OfferUsecase) receipt(offer *model.Offer, ack sheets.Ack, err error, action, id string) Receipt {
	if err != nil {
		u.logRemote(action, id, err)
		return Receipt{Offer: offer, RemoteErr: err}
	}
	return Receipt{Offer: offer, Ack: &ack}
}

func (u *OfferUsecase) logRemote(action, id string, err error) {
	if errors.Is(err, sheets.ErrNotConfigured) {
		u.logger.Debug("sheet not configured, keeping change local", "action", action, "id", id)
		return
	}
	u.logger.Warn("sheet sync failed, keeping local state", "action", action, "id", id, "error", err)
}

// Filter applies the visibility rule: non-admins only ever see APPROVED
// offers; admins see APPROVED in the public view and PENDING in the pending
// view. Search matches title or nickname, case-insensitively.
func Filter(offers []model.Offer, isAdmin bool, q Query) []model.Offer {
	want := model.StatusApproved
	if isAdmin && q.View == ViewPending {
		want = model.StatusPending
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if o.Status != want {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(o.Title), term) &&
			!strings.Contains(strings.ToLower(o.Nickname), term) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func fingerprint(d model.Draft) string {
	b, _ := json.Marshal(d)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
