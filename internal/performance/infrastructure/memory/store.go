package memory

import (
	"context"
	"sync"

	performance "railwatch/internal/performance/domain"
)

// Store is an in-memory backing store for demo/testing. It enforces the
// same natural-key uniqueness and foreign keys as the Postgres schema.
type Store struct {
	mu sync.RWMutex

	nextID performance.ID

	operators         map[string]operatorRow
	stations          map[string]stationRow
	services          map[string]serviceRow
	cancellationTypes map[string]cancellationTypeRow
	arrivals          []performance.ArrivalRow
	cancellations     []performance.CancellationRow

	opened int
	closed int
}

type operatorRow struct {
	ID       performance.ID
	Operator performance.Operator
}

type stationRow struct {
	ID      performance.ID
	Station performance.Station
}

type serviceRow struct {
	ID         performance.ID
	UID        string
	OperatorID performance.ID
}

type cancellationTypeRow struct {
	ID   performance.ID
	Type performance.CancellationType
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		operators:         make(map[string]operatorRow),
		stations:          make(map[string]stationRow),
		services:          make(map[string]serviceRow),
		cancellationTypes: make(map[string]cancellationTypeRow),
	}
}

// Open returns a session bound to the store.
func (s *Store) Open(ctx context.Context) (performance.Session, error) {
	_ = ctx
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	return &session{Store: s}, nil
}

type session struct {
	*Store
	once sync.Once
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.Store.mu.Lock()
		s.Store.closed++
		s.Store.mu.Unlock()
	})
	return nil
}

// Sessions reports how many sessions were opened and closed.
func (s *Store) Sessions() (opened, closed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opened, s.closed
}

func (s *Store) allocateID() performance.ID {
	s.nextID++
	return s.nextID
}

// FindOperator looks up an operator by code.
func (s *Store) FindOperator(ctx context.Context, code string) (performance.ID, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.operators[code]
	return row.ID, ok, nil
}

// InsertOperator inserts an operator.
func (s *Store) InsertOperator(ctx context.Context, operator performance.Operator) (performance.ID, error) {
	_ = ctx
	if err := operator.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.operators[operator.Code]; ok {
		return 0, performance.ErrIdentityRace
	}
	id := s.allocateID()
	s.operators[operator.Code] = operatorRow{ID: id, Operator: operator}
	return id, nil
}

// FindStation looks up a station by CRS code.
func (s *Store) FindStation(ctx context.Context, crs string) (performance.ID, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.stations[crs]
	return row.ID, ok, nil
}

// InsertStation inserts a station.
func (s *Store) InsertStation(ctx context.Context, station performance.Station) (performance.ID, error) {
	_ = ctx
	if err := station.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stations[station.CRS]; ok {
		return 0, performance.ErrIdentityRace
	}
	id := s.allocateID()
	s.stations[station.CRS] = stationRow{ID: id, Station: station}
	return id, nil
}

// FindService looks up a service by uid.
func (s *Store) FindService(ctx context.Context, uid string) (performance.ID, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.services[uid]
	return row.ID, ok, nil
}

// InsertService inserts a service owned by operatorID.
func (s *Store) InsertService(ctx context.Context, service performance.Service, operatorID performance.ID) (performance.ID, error) {
	_ = ctx
	if service.UID == "" {
		return 0, performance.ErrEmptyNaturalKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasOperatorLocked(operatorID) {
		return 0, performance.ErrUnknownReference
	}
	if _, ok := s.services[service.UID]; ok {
		return 0, performance.ErrIdentityRace
	}
	id := s.allocateID()
	s.services[service.UID] = serviceRow{ID: id, UID: service.UID, OperatorID: operatorID}
	return id, nil
}

// FindCancellationType looks up a cancellation type by code.
func (s *Store) FindCancellationType(ctx context.Context, code string) (performance.ID, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.cancellationTypes[code]
	return row.ID, ok, nil
}

// InsertCancellationType inserts a cancellation type.
func (s *Store) InsertCancellationType(ctx context.Context, cancellationType performance.CancellationType) (performance.ID, error) {
	_ = ctx
	if err := cancellationType.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cancellationTypes[cancellationType.Code]; ok {
		return 0, performance.ErrIdentityRace
	}
	id := s.allocateID()
	s.cancellationTypes[cancellationType.Code] = cancellationTypeRow{ID: id, Type: cancellationType}
	return id, nil
}

// InsertArrival appends an arrival unless the same fact exists.
func (s *Store) InsertArrival(ctx context.Context, row performance.ArrivalRow) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasStationLocked(row.StationID) || !s.hasServiceLocked(row.ServiceID) {
		return false, performance.ErrUnknownReference
	}
	for _, existing := range s.arrivals {
		if existing.StationID == row.StationID && existing.ServiceID == row.ServiceID && existing.Scheduled.Equal(row.Scheduled) {
			return false, nil
		}
	}
	s.arrivals = append(s.arrivals, row)
	return true, nil
}

// InsertCancellation appends a cancellation unless the same fact exists.
func (s *Store) InsertCancellation(ctx context.Context, row performance.CancellationRow) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasStationLocked(row.StationID) || !s.hasServiceLocked(row.ServiceID) || !s.hasCancellationTypeLocked(row.CancellationTypeID) {
		return false, performance.ErrUnknownReference
	}
	for _, existing := range s.cancellations {
		if existing.StationID == row.StationID && existing.ServiceID == row.ServiceID && existing.Scheduled.Equal(row.Scheduled) {
			return false, nil
		}
	}
	s.cancellations = append(s.cancellations, row)
	return true, nil
}

func (s *Store) hasOperatorLocked(id performance.ID) bool {
	for _, row := range s.operators {
		if row.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasStationLocked(id performance.ID) bool {
	for _, row := range s.stations {
		if row.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasServiceLocked(id performance.ID) bool {
	for _, row := range s.services {
		if row.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) hasCancellationTypeLocked(id performance.ID) bool {
	for _, row := range s.cancellationTypes {
		if row.ID == id {
			return true
		}
	}
	return false
}

// Counts reports row counts per table.
type Counts struct {
	Operators         int
	Stations          int
	Services          int
	CancellationTypes int
	Arrivals          int
	Cancellations     int
}

// Counts returns current row counts.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Operators:         len(s.operators),
		Stations:          len(s.stations),
		Services:          len(s.services),
		CancellationTypes: len(s.cancellationTypes),
		Arrivals:          len(s.arrivals),
		Cancellations:     len(s.cancellations),
	}
}

// ServiceOperator returns the operator key stored for a service uid.
func (s *Store) ServiceOperator(uid string) (performance.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.services[uid]
	return row.OperatorID, ok
}

// Arrivals returns a copy of stored arrival rows.
func (s *Store) Arrivals() []performance.ArrivalRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]performance.ArrivalRow(nil), s.arrivals...)
}

// Cancellations returns a copy of stored cancellation rows.
func (s *Store) Cancellations() []performance.CancellationRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]performance.CancellationRow(nil), s.cancellations...)
}
