package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/honeynil/RentalOrderService/internal/infrastructure/payment"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/redis"
	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
	"github.com/stretchr/testify/mock"
)

// memStore backs every repository fake with one mutex, so status writes are
// compare-and-swaps like the SQL implementation.
type memStore struct {
	mu           sync.Mutex
	rentals      map[int32]models.Rental
	transactions map[int32]models.Transaction
	appointments map[int32]models.SaleAppointment
	users        map[int32]models.User
	vehicles     map[int32]models.Vehicle
	checked      map[int32]int
	nextID       int32
	checkSeq     int
	settles      int
}

func newMemStore() *memStore {
	return &memStore{
		rentals:      map[int32]models.Rental{},
		transactions: map[int32]models.Transaction{},
		appointments: map[int32]models.SaleAppointment{},
		users:        map[int32]models.User{},
		vehicles:     map[int32]models.Vehicle{},
		checked:      map[int32]int{},
	}
}

func (m *memStore) id() int32 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(id int32, name, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = models.User{ID: id, FullName: name, Email: email}
}

func (m *memStore) addVehicle(id, ownerID int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[id] = models.Vehicle{ID: id, OwnerID: ownerID, Title: fmt.Sprintf("vehicle %d", id)}
}

func (m *memStore) rental(id int32) models.Rental {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rentals[id]
}

func (m *memStore) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func (m *memStore) transactionOf(rentalID int32) (models.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.RentalID == rentalID {
			return tx, true
		}
	}
	return models.Transaction{}, false
}

func (m *memStore) appointment(id int32) models.SaleAppointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

type rentalRepo struct{ *memStore }

func (r rentalRepo) Create(ctx context.Context, rental *models.Rental) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rental.ID = r.id()
	rental.CreatedAt = time.Now()
	rental.UpdatedAt = rental.CreatedAt
	r.rentals[rental.ID] = *rental
	return rental.ID, nil
}

func (r rentalRepo) GetByID(ctx context.Context, id int32) (*models.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rental, ok := r.rentals[id]
	if !ok {
		return nil, pkgerrors.ErrRentalNotFound
	}
	return &rental, nil
}

func (r rentalRepo) ListByRenter(ctx context.Context, renterID int32) ([]models.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Rental
	for _, rental := range r.rentals {
		if rental.RenterID == renterID {
			out = append(out, rental)
		}
	}
	return out, nil
}

func (r rentalRepo) UpdateStatus(ctx context.Context, id int32, from, to models.RentalStatus, cascade *models.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rental, ok := r.rentals[id]
	if !ok {
		return pkgerrors.ErrRentalNotFound
	}
	if rental.Status != from {
		return pkgerrors.ErrConflict
	}
	rental.Status = to
	r.rentals[id] = rental
	if cascade != nil {
		for txID, tx := range r.transactions {
			if tx.RentalID == id && tx.Status == models.TransactionPending {
				tx.Status = *cascade
				r.transactions[txID] = tx
			}
		}
	}
	return nil
}

type transactionRepo struct{ *memStore }

func (r transactionRepo) Create(ctx context.Context, tx *models.Transaction) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transactions {
		if existing.RentalID == tx.RentalID {
			return 0, pkgerrors.ErrPaymentAlreadyInitiated
		}
		if existing.ExternalPaymentID == tx.ExternalPaymentID {
			return 0, pkgerrors.ErrDuplicatePaymentID
		}
	}
	tx.ID = r.id()
	tx.CreatedAt = time.Now()
	tx.UpdatedAt = tx.CreatedAt
	r.transactions[tx.ID] = *tx
	return tx.ID, nil
}

func (r transactionRepo) GetByExternalID(ctx context.Context, pidx string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.ExternalPaymentID == pidx {
			return &tx, nil
		}
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

func (r transactionRepo) GetByRentalID(ctx context.Context, rentalID int32) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.RentalID == rentalID {
			return &tx, nil
		}
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

func (r transactionRepo) ClaimPendingBefore(ctx context.Context, before time.Time, limit int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var candidates []models.Transaction
	for _, tx := range r.transactions {
		if tx.Status == models.TransactionPending && tx.CreatedAt.Before(before) {
			candidates = append(candidates, tx)
		}
	}
	// never checked first, then least recently checked, then oldest
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := r.checked[candidates[i].ID], r.checked[candidates[j].ID]
		if ci != cj {
			return ci < cj
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	for _, tx := range candidates {
		r.checkSeq++
		r.checked[tx.ID] = r.checkSeq
	}
	return candidates, nil
}

func (r transactionRepo) Settle(ctx context.Context, pidx string, to models.TransactionStatus, rentalTo models.RentalStatus) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, tx := range r.transactions {
		if tx.ExternalPaymentID != pidx {
			continue
		}
		if tx.Status != models.TransactionPending {
			return nil, pkgerrors.ErrConflict
		}
		rental := r.rentals[tx.RentalID]
		if rental.Status != models.RentalPending {
			return nil, pkgerrors.ErrInvalidTransition
		}
		tx.Status = to
		rental.Status = rentalTo
		r.transactions[id] = tx
		r.rentals[rental.ID] = rental
		r.settles++
		return &tx, nil
	}
	return nil, pkgerrors.ErrTransactionNotFound
}

type appointmentRepo struct{ *memStore }

func (r appointmentRepo) Create(ctx context.Context, appt *models.SaleAppointment) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.ID = r.id()
	r.appointments[appt.ID] = *appt
	return appt.ID, nil
}

func (r appointmentRepo) GetByID(ctx context.Context, id int32) (*models.SaleAppointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return nil, pkgerrors.ErrAppointmentNotFound
	}
	return &appt, nil
}

func (r appointmentRepo) ListByUser(ctx context.Context, userID int32, role models.Role) ([]models.SaleAppointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SaleAppointment
	for _, appt := range r.appointments {
		if (role == models.RoleBuyer && appt.BuyerID == userID) || (role == models.RoleSeller && appt.SellerID == userID) {
			out = append(out, appt)
		}
	}
	return out, nil
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, id int32, from, to models.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appointments[id]
	if !ok {
		return pkgerrors.ErrAppointmentNotFound
	}
	if appt.Status != from {
		return pkgerrors.ErrConflict
	}
	appt.Status = to
	r.appointments[id] = appt
	return nil
}

type userRepo struct{ *memStore }

func (r userRepo) GetByID(ctx context.Context, id int32) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	return &u, nil
}

type vehicleRepo struct{ *memStore }

func (r vehicleRepo) GetByID(ctx context.Context, id int32) (*models.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, pkgerrors.ErrVehicleNotFound
	}
	return &v, nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.InitiateResponse), args.Error(1)
}

func (m *mockGateway) Lookup(ctx context.Context, pidx string) (*payment.LookupResponse, error) {
	args := m.Called(ctx, pidx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.LookupResponse), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (r *recordingEvents) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEvents) count(entity, to string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Entity == entity && e.To == to {
			n++
		}
	}
	return n
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = fmt.Sprint(value)
	return nil
}

func (c *memCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = fmt.Sprint(value)
	return true, nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

type fixture struct {
	store    *memStore
	gateway  *mockGateway
	notifier *mockNotifier
	events   *recordingEvents
	cache    *memCache
	svc      *orderService
}

const (
	renterID = int32(100)
	sellerID = int32(200)
	buyerID  = int32(300)
	carID    = int32(10)
)

func newFixture() *fixture {
	store := newMemStore()
	store.addUser(renterID, "Ram Renter", "ram@example.com")
	store.addUser(sellerID, "Sita Seller", "sita@example.com")
	store.addUser(buyerID, "Hari Buyer", "hari@example.com")
	store.addVehicle(carID, sellerID)

	f := &fixture{
		store:    store,
		gateway:  &mockGateway{},
		notifier: &mockNotifier{},
		events:   &recordingEvents{},
		cache:    newMemCache(),
	}
	f.svc = NewOrderService(Dependencies{
		Rentals:      rentalRepo{store},
		Transactions: transactionRepo{store},
		Appointments: appointmentRepo{store},
		Users:        userRepo{store},
		Vehicles:     vehicleRepo{store},
		Gateway:      f.gateway,
		Notifier:     f.notifier,
		Events:       f.events,
		Cache:        f.cache,
	}, Options{LookupTimeout: time.Second, InitiateTimeout: time.Second})
	return f
}
