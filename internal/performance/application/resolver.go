package application

import (
	"context"
	"errors"
	"fmt"

	"railwatch/internal/observability/metrics"
	performance "railwatch/internal/performance/domain"
)

const (
	entityOperator         = "operator"
	entityStation          = "station"
	entityService          = "service"
	entityCancellationType = "cancellation_type"
)

// IdentityResolver maps natural-keyed entities to surrogate keys, inserting
// rows on first sighting.
type IdentityResolver struct {
	store performance.IdentityStore
}

// NewIdentityResolver constructs an IdentityResolver.
func NewIdentityResolver(store performance.IdentityStore) (*IdentityResolver, error) {
	if store == nil {
		return nil, errors.New("identity resolver: nil store")
	}
	return &IdentityResolver{store: store}, nil
}

// ResolveOperator returns the surrogate key for operator.
func (r *IdentityResolver) ResolveOperator(ctx context.Context, operator performance.Operator) (performance.ID, error) {
	if err := operator.Validate(); err != nil {
		return 0, fmt.Errorf("%w: operator: %w", performance.ErrPersistence, err)
	}
	return resolve(ctx, entityOperator, operator.Code,
		func(ctx context.Context) (performance.ID, bool, error) {
			return r.store.FindOperator(ctx, operator.Code)
		},
		func(ctx context.Context) (performance.ID, error) {
			return r.store.InsertOperator(ctx, operator)
		},
	)
}

// ResolveStation returns the surrogate key for station.
func (r *IdentityResolver) ResolveStation(ctx context.Context, station performance.Station) (performance.ID, error) {
	if err := station.Validate(); err != nil {
		return 0, fmt.Errorf("%w: station: %w", performance.ErrPersistence, err)
	}
	return resolve(ctx, entityStation, station.CRS,
		func(ctx context.Context) (performance.ID, bool, error) {
			return r.store.FindStation(ctx, station.CRS)
		},
		func(ctx context.Context) (performance.ID, error) {
			return r.store.InsertStation(ctx, station)
		},
	)
}

// ResolveService returns the surrogate key for service. operatorID must be
// the resolved key of service.Operator.
func (r *IdentityResolver) ResolveService(ctx context.Context, service performance.Service, operatorID performance.ID) (performance.ID, error) {
	if err := service.Validate(); err != nil {
		return 0, fmt.Errorf("%w: service: %w", performance.ErrPersistence, err)
	}
	if operatorID <= 0 {
		return 0, fmt.Errorf("%w: service %s: unresolved operator", performance.ErrPersistence, service.UID)
	}
	return resolve(ctx, entityService, service.UID,
		func(ctx context.Context) (performance.ID, bool, error) {
			return r.store.FindService(ctx, service.UID)
		},
		func(ctx context.Context) (performance.ID, error) {
			return r.store.InsertService(ctx, service, operatorID)
		},
	)
}

// ResolveCancellationType returns the surrogate key for cancellationType.
func (r *IdentityResolver) ResolveCancellationType(ctx context.Context, cancellationType performance.CancellationType) (performance.ID, error) {
	if err := cancellationType.Validate(); err != nil {
		return 0, fmt.Errorf("%w: cancellation type: %w", performance.ErrPersistence, err)
	}
	return resolve(ctx, entityCancellationType, cancellationType.Code,
		func(ctx context.Context) (performance.ID, bool, error) {
			return r.store.FindCancellationType(ctx, cancellationType.Code)
		},
		func(ctx context.Context) (performance.ID, error) {
			return r.store.InsertCancellationType(ctx, cancellationType)
		},
	)
}

// ServiceKeys are the keys shared by every fact.
type ServiceKeys struct {
	OperatorID performance.ID
	StationID  performance.ID
	ServiceID  performance.ID
}

// ResolveServiceKeys resolves operator, station and service in dependency order.
func (r *IdentityResolver) ResolveServiceKeys(ctx context.Context, station performance.Station, service performance.Service) (ServiceKeys, error) {
	operatorID, err := r.ResolveOperator(ctx, service.Operator)
	if err != nil {
		return ServiceKeys{}, err
	}
	stationID, err := r.ResolveStation(ctx, station)
	if err != nil {
		return ServiceKeys{}, err
	}
	serviceID, err := r.ResolveService(ctx, service, operatorID)
	if err != nil {
		return ServiceKeys{}, err
	}
	return ServiceKeys{OperatorID: operatorID, StationID: stationID, ServiceID: serviceID}, nil
}

type findFunc func(ctx context.Context) (performance.ID, bool, error)

type insertFunc func(ctx context.Context) (performance.ID, error)

// resolve runs lookup, insert, then a single re-lookup if the insert lost a
// natural-key race.
func resolve(ctx context.Context, entity, key string, find findFunc, insert insertFunc) (performance.ID, error) {
	id, ok, err := find(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: find %s %q: %v", performance.ErrPersistence, entity, key, err)
	}
	if ok {
		metrics.IncIdentity(entity, metrics.IdentityReused)
		return id, nil
	}

	id, err = insert(ctx)
	if err == nil {
		metrics.IncIdentity(entity, metrics.IdentityInserted)
		return id, nil
	}
	if !errors.Is(err, performance.ErrIdentityRace) {
		return 0, fmt.Errorf("%w: insert %s %q: %v", performance.ErrPersistence, entity, key, err)
	}

	metrics.IncIdentity(entity, metrics.IdentityRace)
	id, ok, err = find(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: re-find %s %q: %v", performance.ErrPersistence, entity, key, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s %q missing after conflicting insert", performance.ErrPersistence, entity, key)
	}
	return id, nil
}
