// Package memory is an in-process implementation of the reservation
// repositories with the same conditional-update semantics as the Mongo
// stores. Services are exercised against it in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	reservationserrors "adspace/internal/reservations/errors"
	"adspace/internal/reservations/repository"
	mongotx "adspace/pkg/db/mongo"
	"adspace/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu            sync.Mutex
	media         map[string]model.Media
	companies     map[string]model.Company
	reservations  map[string]model.Reservation
	campaigns     map[string]model.Campaign
	campaignMedia map[string]model.CampaignMedia
	locks         map[string]model.Lock
	failures      map[string]error
	calls         map[string]int
	seq           int
}

func NewStore() *Store {
	return &Store{
		media:         map[string]model.Media{},
		companies:     map[string]model.Company{},
		reservations:  map[string]model.Reservation{},
		campaigns:     map[string]model.Campaign{},
		campaignMedia: map[string]model.CampaignMedia{},
		locks:         map[string]model.Lock{},
		failures:      map[string]error{},
		calls:         map[string]int{},
	}
}

// Repositories returns the store behind every repository interface.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Media:         mediaRepo{s},
		Companies:     companyRepo{s},
		Reservations:  reservationRepo{s},
		Campaigns:     campaignRepo{s},
		CampaignMedia: campaignMediaRepo{s},
		Locks:         lockRepo{s},
	}
}

// FailOn makes the named operation (e.g. "reservations.Confirm") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.mu.Lock()
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) newID() string {
	s.seq++
	return primitive.NewObjectIDFromTimestamp(time.Unix(int64(1700000000+s.seq), 0)).Hex()
}

func (s *Store) PutMedia(m model.Media) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = s.newID()
	}
	s.media[m.ID] = m
	return m.ID
}

func (s *Store) PutCompany(c model.Company) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.newID()
	}
	s.companies[c.ID] = c
	return c.ID
}

func (s *Store) PutReservation(r model.Reservation) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	s.reservations[r.ID] = r
	return r.ID
}

func (s *Store) PutCampaign(c model.Campaign) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.newID()
	}
	s.campaigns[c.ID] = c
	return c.ID
}

func (s *Store) PutCampaignMedia(cm model.CampaignMedia) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cm.ID == "" {
		cm.ID = s.newID()
	}
	if cm.Status == "" {
		cm.Status = model.CampaignMediaPending
	}
	s.campaignMedia[cm.ID] = cm
	return cm.ID
}

func (s *Store) DeleteReservation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, id)
}

func (s *Store) Reservation(id string) (model.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	return r, ok
}

// AllReservations returns every reservation sorted by ID.
func (s *Store) AllReservations() []model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Campaign(id string) (model.Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	return c, ok
}

func (s *Store) CampaignMedia(id string) (model.CampaignMedia, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cm, ok := s.campaignMedia[id]
	return cm, ok
}

func (s *Store) LockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

type mediaRepo struct{ s *Store }

func (r mediaRepo) FindByID(_ context.Context, id string) (*model.Media, error) {
	if err := r.s.enter("media.FindByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	m, ok := r.s.media[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &m, nil
}

func (r mediaRepo) Create(_ context.Context, m *model.Media) error {
	if err := r.s.enter("media.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	m.ID = r.s.newID()
	r.s.media[m.ID] = *m
	return nil
}

type companyRepo struct{ s *Store }

func (r companyRepo) FindByID(_ context.Context, id string) (*model.Company, error) {
	if err := r.s.enter("companies.FindByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &c, nil
}

func (r companyRepo) Create(_ context.Context, c *model.Company) error {
	if err := r.s.enter("companies.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	c.ID = r.s.newID()
	r.s.companies[c.ID] = *c
	return nil
}

type reservationRepo struct{ s *Store }

func (r reservationRepo) Create(_ context.Context, res *model.Reservation) error {
	if err := r.s.enter("reservations.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	res.ID = r.s.newID()
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	r.s.reservations[res.ID] = *res
	return nil
}

func (r reservationRepo) CreateMany(_ context.Context, rs []*model.Reservation) error {
	if err := r.s.enter("reservations.CreateMany"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	for _, res := range rs {
		res.ID = r.s.newID()
		res.CreatedAt = time.Now().UTC()
		res.UpdatedAt = res.CreatedAt
		r.s.reservations[res.ID] = *res
	}
	return nil
}

func (r reservationRepo) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	if err := r.s.enter("reservations.FindByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &res, nil
}

func (r reservationRepo) FindConfirmedByMedia(_ context.Context, mediaID string) ([]*model.Reservation, error) {
	if err := r.s.enter("reservations.FindConfirmedByMedia"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.filter(func(res model.Reservation) bool {
		return res.MediaID == mediaID && res.Status == model.ReservationConfirmed
	}), nil
}

func (r reservationRepo) FindConfirmedOverlapping(_ context.Context, mediaID string, start, end time.Time, excludeID string) ([]*model.Reservation, error) {
	if err := r.s.enter("reservations.FindConfirmedOverlapping"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	return r.filter(func(res model.Reservation) bool {
		return res.MediaID == mediaID &&
			res.Status == model.ReservationConfirmed &&
			res.ID != excludeID &&
			res.Overlaps(start, end)
	}), nil
}

func (r reservationRepo) FindReleasable(_ context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	if err := r.s.enter("reservations.FindReleasable"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := r.filter(func(res model.Reservation) bool {
		return res.Status == model.ReservationConfirmed &&
			res.PaymentStatus == model.PaymentHeld &&
			res.RentalEnded(now)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r reservationRepo) FindPendingByIDs(_ context.Context, ids []string) ([]*model.Reservation, error) {
	if err := r.s.enter("reservations.FindPendingByIDs"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return r.filter(func(res model.Reservation) bool {
		return want[res.ID] && res.Status == model.ReservationPending
	}), nil
}

// filter must be called with the lock held.
func (r reservationRepo) filter(keep func(model.Reservation) bool) []*model.Reservation {
	var out []*model.Reservation
	for _, res := range r.s.reservations {
		if keep(res) {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r reservationRepo) SetPaymentReference(_ context.Context, ids []string, paymentIntentID, sessionID string) error {
	if err := r.s.enter("reservations.SetPaymentReference"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	for _, id := range ids {
		res, ok := r.s.reservations[id]
		if !ok || res.Status != model.ReservationPending {
			continue
		}
		res.CheckoutSessionID = sessionID
		if paymentIntentID != "" {
			res.PaymentIntentID = paymentIntentID
		}
		r.s.reservations[id] = res
	}
	return nil
}

func (r reservationRepo) Confirm(_ context.Context, id, paymentIntentID string) (bool, error) {
	if err := r.s.enter("reservations.Confirm"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok || !res.Reinstatable() {
		return false, nil
	}
	ts := time.Now().UTC()
	res.CancellationReason = ""
	res.Status = model.ReservationConfirmed
	res.PaymentStatus = model.PaymentHeld
	res.ConfirmedAt = &ts
	if paymentIntentID != "" {
		res.PaymentIntentID = paymentIntentID
	}
	r.s.reservations[id] = res
	return true, nil
}

func (r reservationRepo) Cancel(_ context.Context, id, reason string) (bool, error) {
	if err := r.s.enter("reservations.Cancel"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return false, nil
	}
	reCancel := res.Status == model.ReservationCancelled &&
		res.CancellationReason == model.CancelReasonPaymentFailed &&
		reason != model.CancelReasonPaymentFailed
	if res.Status != model.ReservationPending && !reCancel {
		return false, nil
	}
	res.Status = model.ReservationCancelled
	res.CancellationReason = reason
	r.s.reservations[id] = res
	return true, nil
}

func (r reservationRepo) MarkReleased(_ context.Context, id string, outcome model.ReleaseOutcome) (bool, error) {
	if err := r.s.enter("reservations.MarkReleased"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok || res.Status != model.ReservationConfirmed || res.PaymentStatus != model.PaymentHeld {
		return false, nil
	}
	ts := outcome.ReleasedAt.UTC()
	res.Status = model.ReservationCompleted
	res.PaymentStatus = model.PaymentReleased
	res.ReleasedAt = &ts
	res.TransferID = outcome.TransferID
	res.TransferError = outcome.TransferError
	r.s.reservations[id] = res
	return true, nil
}

func (r reservationRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.s.mu.Lock()
	r.s.calls["reservations.ExecuteTransaction"]++
	snapshot := r.s.snapshot()
	r.s.mu.Unlock()

	if err := (mongotx.NoopTransactionManager{}).ExecuteTransaction(ctx, fn); err != nil {
		r.s.mu.Lock()
		r.s.restore(snapshot)
		r.s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	reservations  map[string]model.Reservation
	campaigns     map[string]model.Campaign
	campaignMedia map[string]model.CampaignMedia
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		reservations:  make(map[string]model.Reservation, len(s.reservations)),
		campaigns:     make(map[string]model.Campaign, len(s.campaigns)),
		campaignMedia: make(map[string]model.CampaignMedia, len(s.campaignMedia)),
	}
	for k, v := range s.reservations {
		snap.reservations[k] = v
	}
	for k, v := range s.campaigns {
		snap.campaigns[k] = v
	}
	for k, v := range s.campaignMedia {
		snap.campaignMedia[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.reservations = snap.reservations
	s.campaigns = snap.campaigns
	s.campaignMedia = snap.campaignMedia
}

type campaignRepo struct{ s *Store }

func (r campaignRepo) FindByID(_ context.Context, id string) (*model.Campaign, error) {
	if err := r.s.enter("campaigns.FindByID"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return &c, nil
}

func (r campaignRepo) Create(_ context.Context, c *model.Campaign) error {
	if err := r.s.enter("campaigns.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	c.ID = r.s.newID()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	r.s.campaigns[c.ID] = *c
	return nil
}

func (r campaignRepo) TransitionStatus(_ context.Context, id string, to model.CampaignStatus, paymentIntentID string) (bool, error) {
	if err := r.s.enter("campaigns.TransitionStatus"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || !model.CanTransitionCampaign(c.Status, to) {
		return false, nil
	}
	c.Status = to
	if to == model.CampaignPaid {
		ts := time.Now().UTC()
		c.PaidAt = &ts
	}
	if paymentIntentID != "" {
		c.PaymentIntentID = paymentIntentID
	}
	r.s.campaigns[id] = c
	return true, nil
}

type campaignMediaRepo struct{ s *Store }

func (r campaignMediaRepo) Create(_ context.Context, cm *model.CampaignMedia) error {
	if err := r.s.enter("campaignMedia.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	cm.ID = r.s.newID()
	if cm.Status == "" {
		cm.Status = model.CampaignMediaPending
	}
	r.s.campaignMedia[cm.ID] = *cm
	return nil
}

func (r campaignMediaRepo) FindPendingByCampaign(_ context.Context, campaignID string) ([]*model.CampaignMedia, error) {
	if err := r.s.enter("campaignMedia.FindPendingByCampaign"); err != nil {
		r.s.mu.Unlock()
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*model.CampaignMedia
	for _, cm := range r.s.campaignMedia {
		if cm.CampaignID == campaignID && cm.Status == model.CampaignMediaPending {
			cm := cm
			out = append(out, &cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r campaignMediaRepo) MarkReserved(_ context.Context, id, reservationID string) (bool, error) {
	if err := r.s.enter("campaignMedia.MarkReserved"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	cm, ok := r.s.campaignMedia[id]
	if !ok || cm.Status != model.CampaignMediaPending {
		return false, nil
	}
	cm.Status = model.CampaignMediaReserved
	cm.ReservationID = reservationID
	r.s.campaignMedia[id] = cm
	return true, nil
}

type lockRepo struct{ s *Store }

func (r lockRepo) Create(_ context.Context, lock *model.Lock) error {
	if err := r.s.enter("locks.Create"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if _, held := r.s.locks[lock.ID]; held {
		return reservationserrors.ErrLockHeld
	}
	lock.CreatedAt = time.Now().UTC()
	r.s.locks[lock.ID] = *lock
	return nil
}

func (r lockRepo) Delete(_ context.Context, id, owner string) error {
	if err := r.s.enter("locks.Delete"); err != nil {
		r.s.mu.Unlock()
		return err
	}
	defer r.s.mu.Unlock()
	if l, ok := r.s.locks[id]; ok && l.Owner == owner {
		delete(r.s.locks, id)
	}
	return nil
}

func (r lockRepo) DeleteExpired(_ context.Context, id string, now time.Time) (bool, error) {
	if err := r.s.enter("locks.DeleteExpired"); err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	defer r.s.mu.Unlock()
	l, ok := r.s.locks[id]
	if !ok || !l.Expired(now) {
		return false, nil
	}
	delete(r.s.locks, id)
	return true, nil
}

var (
	_ repository.MediaRepository         = mediaRepo{}
	_ repository.CompanyRepository       = companyRepo{}
	_ repository.ReservationRepository   = reservationRepo{}
	_ repository.CampaignRepository      = campaignRepo{}
	_ repository.CampaignMediaRepository = campaignMediaRepo{}
	_ repository.LockRepository          = lockRepo{}
)
