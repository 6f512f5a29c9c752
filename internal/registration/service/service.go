// Package service implements the zonasi registration pipeline on top of the
// store, the document catalog, and the routing provider boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zonasi/internal/documents"
	"zonasi/internal/geo"
	"zonasi/internal/registration"
	"zonasi/internal/registration/metrics"
	"zonasi/internal/routing"
	"zonasi/internal/schedule"
	derrors "zonasi/pkg/domain-errors"
	"zonasi/pkg/platform/sentinel"
)

// Distancer is the routed-distance boundary. The production implementation is
// routing.Client; tests inject fakes.
type Distancer interface {
	Distance(ctx context.Context, origin, destination geo.Point) (float64, error)
}

// Service orchestrates registration flows.
type Service struct {
	store   registration.Store
	catalog documents.CatalogClient
	routing Distancer
	logger  *slog.Logger
	metrics *metrics.Metrics

	workers          int
	confirmGroupSize int
	confirmPause     time.Duration
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWorkers overrides the per-student concurrency degree. Tests use 1 for
// deterministic call ordering.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithConfirmPause overrides the pause between routed-confirmation groups.
func WithConfirmPause(d time.Duration) Option {
	return func(s *Service) { s.confirmPause = d }
}

// WithClock pins record timestamps for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the registration service. Store, catalog client and routing
// boundary are all required.
func New(store registration.Store, catalog documents.CatalogClient, router Distancer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("registration store is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("document catalog client is required")
	}
	if router == nil {
		return nil, fmt.Errorf("routing client is required")
	}
	s := &Service{
		store:   store,
		catalog: catalog,
		routing: router,
		logger:  slog.Default(),

		workers:          4,
		confirmGroupSize: 5,
		confirmPause:     time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register runs the single-student flow. Beyond the completeness gate it
// applies the validity gate: when any submitted document lacks the tier marker
// the record is still created, with status BELUM_VERIF. The batch flow instead
// rejects outright; the asymmetry is inherited behavior.
func (s *Service) Register(ctx context.Context, input registration.StudentInput, periodeJalurID int, window schedule.Window) (registration.Record, error) {
	if err := input.Validate(); err != nil {
		return registration.Record{}, err
	}

	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return registration.Record{}, derrors.Wrap(err, derrors.CodeUnavailable, "failed to load document catalog")
	}
	required := documents.RequiredKinds(catalog)

	docs, err := s.store.FindStudentDocuments(ctx, []int{input.SiswaID})
	if err != nil {
		return registration.Record{}, derrors.Wrap(err, derrors.CodeInternal, "failed to load student documents")
	}
	kinds := documents.KindsBySiswa(docs)[input.SiswaID]
	if complete, _ := documents.Completeness(required, kinds); !complete {
		return registration.Record{}, incompleteDocumentsError(input.SiswaID)
	}
	allValid := documents.AllValid(docs, documents.StatusValidSD)

	zone, err := s.store.FindZoneMapping(ctx, input.BanjarID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registration.Record{}, zoneNotFoundError(input.BanjarID)
		}
		return registration.Record{}, derrors.Wrap(err, derrors.CodeInternal, "failed to resolve zone")
	}

	record, err := s.assembleRecord(ctx, input, periodeJalurID, window, zone)
	if err != nil {
		return registration.Record{}, err
	}
	if !allValid {
		record.Status = registration.StatusBelumVerif
	}

	created, err := s.store.Create(ctx, record)
	if err != nil {
		return registration.Record{}, derrors.Wrap(err, derrors.CodeInternal, "failed to persist registration")
	}
	s.metrics.IncCreated(string(created.Status), 1)
	return created, nil
}

// VerifyMany transitions existing registrations to VERIF_SD after document
// re-verification.
func (s *Service) VerifyMany(ctx context.Context, pendaftaranIDs []int64) (int64, error) {
	if len(pendaftaranIDs) == 0 {
		return 0, derrors.New(derrors.CodeBadRequest, "pendaftaran ids are required")
	}
	touched, err := s.store.UpdateStatusMany(ctx, pendaftaranIDs, registration.StatusVerifSD)
	if err != nil {
		return 0, derrors.Wrap(err, derrors.CodeInternal, "failed to update registration statuses")
	}
	return touched, nil
}

// ZoneSchool resolves a banjar's assigned school.
func (s *Service) ZoneSchool(ctx context.Context, banjarID int) (registration.ZoneMapping, error) {
	zone, err := s.store.FindZoneMapping(ctx, banjarID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return registration.ZoneMapping{}, zoneNotFoundError(banjarID)
		}
		return registration.ZoneMapping{}, derrors.Wrap(err, derrors.CodeInternal, "failed to resolve zone")
	}
	return zone, nil
}

// List returns one page of registrations plus the unpaged total.
func (s *Service) List(ctx context.Context, query registration.ListQuery) ([]registration.ListItem, int64, error) {
	if err := query.Validate(); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.List(ctx, query)
	if err != nil {
		return nil, 0, derrors.Wrap(err, derrors.CodeInternal, "failed to list registrations")
	}
	return items, total, nil
}

// StudentRegistrations returns all registrations of one student.
func (s *Service) StudentRegistrations(ctx context.Context, siswaID int) ([]registration.Record, error) {
	records, err := s.store.ListBySiswa(ctx, siswaID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list student registrations")
	}
	return records, nil
}

// assembleRecord computes distances and age for one student and builds the
// record with the default VERIF_SD status.
func (s *Service) assembleRecord(
	ctx context.Context,
	input registration.StudentInput,
	periodeJalurID int,
	window schedule.Window,
	zone registration.ZoneMapping,
) (registration.Record, error) {
	studentPoint := geo.Point{Lat: input.Lintang, Lon: input.Bujur}
	schoolPoint := geo.Point{Lat: zone.Lintang, Lon: zone.Bujur}

	jarakLurus := geo.Distance(studentPoint, schoolPoint)

	jarakRute, err := s.routing.Distance(ctx, studentPoint, schoolPoint)
	if err != nil {
		if errors.Is(err, routing.ErrNoRoute) {
			return registration.Record{}, derrors.Newf(derrors.CodeUnavailable,
				"no route found between siswa %d and sekolah %d", input.SiswaID, zone.SekolahID)
		}
		return registration.Record{}, derrors.Wrap(err, derrors.CodeUnavailable, "routing provider failed")
	}

	return registration.Record{
		SiswaID:        input.SiswaID,
		PeriodeJalurID: periodeJalurID,
		SekolahID:      zone.SekolahID,
		UmurSiswa:      registration.AgeInDays(input.TanggalLahir, window.WaktuMulai),
		JarakLurus:     jarakLurus,
		JarakRute:      jarakRute,
		Status:         registration.StatusVerifSD,
		Keterangan:     input.Keterangan,
		CreatedAt:      s.now(),
	}, nil
}

func incompleteDocumentsError(siswaID int) error {
	return derrors.Newf(derrors.CodeBadRequest, "student document with id %d is incomplete", siswaID)
}

func zoneNotFoundError(banjarID int) error {
	return derrors.Newf(derrors.CodeNotFound, "zonasi not found for banjar with id %d", banjarID)
}
