package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zonasi/internal/documents"
	"zonasi/internal/geo"
	"zonasi/internal/registration"
	"zonasi/internal/registration/store"
	"zonasi/internal/schedule"
	derrors "zonasi/pkg/domain-errors"
)

type fakeCatalog struct {
	requirements []documents.Requirement
	err          error
}

func (f *fakeCatalog) Catalog(context.Context) ([]documents.Requirement, error) {
	return f.requirements, f.err
}

// fakeRouter answers routed-distance calls from a function, tracking call and
// concurrency counts.
type fakeRouter struct {
	mu           sync.Mutex
	calls        int
	inFlight     int
	maxInFlight  int
	delayPerCall time.Duration
	distanceFunc func(origin, destination geo.Point) (float64, error)
}

func (f *fakeRouter) Distance(_ context.Context, origin, destination geo.Point) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delayPerCall > 0 {
		time.Sleep(f.delayPerCall)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.distanceFunc != nil {
		return f.distanceFunc(origin, destination)
	}
	return geo.Distance(origin, destination) * 1.3, nil
}

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	catalog *fakeCatalog
	router  *fakeRouter
	svc     *Service
	window  schedule.Window
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.catalog = &fakeCatalog{requirements: []documents.Requirement{
		{DokumenID: 1, DokumenJenis: "Akta Kelahiran", IsUmum: true},
		{DokumenID: 2, DokumenJenis: "Kartu Keluarga", IsUmum: true},
		{DokumenID: 3, DokumenJenis: "KIP", IsUmum: false},
	}}
	s.router = &fakeRouter{}

	s.store.SeedSchool(registration.School{SekolahID: 200, SekolahNama: "SMPN 1 Denpasar", Jenjang: "SMP", Lintang: -8.66, Bujur: 115.22})
	s.store.SeedSchool(registration.School{SekolahID: 201, SekolahNama: "SMPN 2 Denpasar", Jenjang: "SMP", Lintang: -8.70, Bujur: 115.25})
	s.store.SeedSchool(registration.School{SekolahID: 202, SekolahNama: "SMPN 3 Denpasar", Jenjang: "SMP", Lintang: -8.60, Bujur: 115.18})
	s.store.SeedSchool(registration.School{SekolahID: 203, SekolahNama: "SMPN 4 Denpasar", Jenjang: "SMP", Lintang: -8.80, Bujur: 115.30})
	s.store.SeedZone(registration.ZoneMapping{BanjarID: 11, SekolahID: 200, SekolahNama: "SMPN 1 Denpasar", Lintang: -8.66, Bujur: 115.22})
	s.store.SeedZone(registration.ZoneMapping{BanjarID: 12, SekolahID: 201, SekolahNama: "SMPN 2 Denpasar", Lintang: -8.70, Bujur: 115.25})

	s.window = schedule.Window{
		JadwalID:       7,
		PeriodeJalurID: 9,
		TahapanNama:    "Pendaftaran",
		WaktuMulai:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		WaktuSelesai:   time.Date(2025, 7, 14, 23, 59, 0, 0, time.UTC),
	}

	svc, err := New(s.store, s.catalog, s.router,
		WithConfirmPause(0),
		WithClock(func() time.Time { return time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC) }),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) seedCompleteDocs(siswaID int, status string) {
	s.store.SeedDocument(documents.StudentDocument{SiswaID: siswaID, DokumenID: 1, Status: status})
	s.store.SeedDocument(documents.StudentDocument{SiswaID: siswaID, DokumenID: 2, Status: status})
}

func studentInput(siswaID, banjarID int) registration.StudentInput {
	return registration.StudentInput{
		SiswaID:      siswaID,
		BanjarID:     banjarID,
		TanggalLahir: time.Date(2012, 3, 15, 0, 0, 0, 0, time.UTC),
		Lintang:      -8.65,
		Bujur:        115.21,
	}
}

func (s *ServiceSuite) TestRegisterCreatesVerifSD() {
	s.seedCompleteDocs(1, documents.StatusValidSD)

	rec, err := s.svc.Register(context.Background(), studentInput(1, 11), 9, s.window)
	s.Require().NoError(err)

	s.Equal(registration.StatusVerifSD, rec.Status)
	s.Equal(200, rec.SekolahID)
	s.Equal(9, rec.PeriodeJalurID)
	s.Greater(rec.JarakLurus, 0.0)
	s.Greater(rec.JarakRute, rec.JarakLurus)
	s.Equal(registration.AgeInDays(time.Date(2012, 3, 15, 0, 0, 0, 0, time.UTC), s.window.WaktuMulai), rec.UmurSiswa)
	s.NotZero(rec.PendaftaranID)
}

func (s *ServiceSuite) TestRegisterUnverifiedDocsStillCreates() {
	// Complete set but one document lacks the VALID_SD marker.
	s.store.SeedDocument(documents.StudentDocument{SiswaID: 1, DokumenID: 1, Status: documents.StatusValidSD})
	s.store.SeedDocument(documents.StudentDocument{SiswaID: 1, DokumenID: 2, Status: "DIUNGGAH"})

	rec, err := s.svc.Register(context.Background(), studentInput(1, 11), 9, s.window)
	s.Require().NoError(err)
	s.Equal(registration.StatusBelumVerif, rec.Status)
}

func (s *ServiceSuite) TestRegisterIncompleteDocsRejected() {
	s.store.SeedDocument(documents.StudentDocument{SiswaID: 1, DokumenID: 1, Status: documents.StatusValidSD})

	_, err := s.svc.Register(context.Background(), studentInput(1, 11), 9, s.window)
	s.Require().Error(err)
	s.Equal(derrors.CodeBadRequest, derrors.CodeOf(err))
	s.Contains(err.Error(), "student document with id 1 is incomplete")

	records, err := s.store.FindBySiswaIDs(context.Background(), []int{1})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ServiceSuite) TestRegisterUnknownBanjar() {
	s.seedCompleteDocs(1, documents.StatusValidSD)

	_, err := s.svc.Register(context.Background(), studentInput(1, 999), 9, s.window)
	s.Require().Error(err)
	s.Equal(derrors.CodeNotFound, derrors.CodeOf(err))
	s.Contains(err.Error(), "banjar with id 999")
}

func (s *ServiceSuite) TestRegisterBatchCreatesAndReconciles() {
	ctx := context.Background()
	s.seedCompleteDocs(1, documents.StatusValidSD)
	s.seedCompleteDocs(2, documents.StatusValidSD)
	s.seedCompleteDocs(3, documents.StatusValidSD)

	// Student 3 registered earlier, not yet verified.
	prior, err := s.store.Create(ctx, registration.Record{SiswaID: 3, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusBelumVerif})
	s.Require().NoError(err)

	result, err := s.svc.RegisterBatch(ctx, []registration.StudentInput{
		studentInput(1, 11),
		studentInput(2, 12),
		studentInput(3, 11),
	}, 9, s.window)
	s.Require().NoError(err)

	s.Equal(int64(2), result.Created)
	s.Equal(int64(1), result.Updated)
	s.Equal(int64(3), result.Total)

	records, err := s.store.FindBySiswaIDs(ctx, []int{1, 2, 3})
	s.Require().NoError(err)
	s.Len(records, 3)
	for _, rec := range records {
		s.Equal(registration.StatusVerifSD, rec.Status)
	}

	reconciled, err := s.store.FindBySiswaIDs(ctx, []int{3})
	s.Require().NoError(err)
	s.Require().Len(reconciled, 1)
	s.Equal(prior.PendaftaranID, reconciled[0].PendaftaranID)
}

func (s *ServiceSuite) TestRegisterBatchIdempotentReconciliation() {
	ctx := context.Background()
	s.seedCompleteDocs(1, documents.StatusValidSD)
	s.seedCompleteDocs(2, documents.StatusValidSD)

	inputs := []registration.StudentInput{studentInput(1, 11), studentInput(2, 12)}

	first, err := s.svc.RegisterBatch(ctx, inputs, 9, s.window)
	s.Require().NoError(err)
	s.Equal(int64(2), first.Created)
	s.Equal(int64(0), first.Updated)

	second, err := s.svc.RegisterBatch(ctx, inputs, 9, s.window)
	s.Require().NoError(err)
	s.Equal(int64(0), second.Created)
	s.Equal(int64(2), second.Updated)
	s.Equal(int64(2), second.Total)

	records, err := s.store.FindBySiswaIDs(ctx, []int{1, 2})
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *ServiceSuite) TestRegisterBatchAbortsOnIncompleteDocuments() {
	ctx := context.Background()
	s.seedCompleteDocs(1, documents.StatusValidSD)
	// Student 2 is missing document kind 2.
	s.store.SeedDocument(documents.StudentDocument{SiswaID: 2, DokumenID: 1, Status: documents.StatusValidSD})
	s.seedCompleteDocs(3, documents.StatusValidSD)

	_, err := s.svc.RegisterBatch(ctx, []registration.StudentInput{
		studentInput(1, 11),
		studentInput(2, 12),
		studentInput(3, 11),
	}, 9, s.window)
	s.Require().Error(err)
	s.Equal(derrors.CodeBadRequest, derrors.CodeOf(err))
	s.Contains(err.Error(), "student document with id 2 is incomplete")

	// All-or-nothing: nothing persisted for any student in the batch.
	records, err := s.store.FindBySiswaIDs(ctx, []int{1, 2, 3})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ServiceSuite) TestRegisterBatchAbortsOnUnmappedBanjar() {
	ctx := context.Background()
	s.seedCompleteDocs(1, documents.StatusValidSD)
	s.seedCompleteDocs(2, documents.StatusValidSD)

	_, err := s.svc.RegisterBatch(ctx, []registration.StudentInput{
		studentInput(1, 11),
		studentInput(2, 404),
	}, 9, s.window)
	s.Require().Error(err)
	s.Equal(derrors.CodeNotFound, derrors.CodeOf(err))
	s.Contains(err.Error(), "banjar with id 404")

	records, err := s.store.FindBySiswaIDs(ctx, []int{1, 2})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ServiceSuite) TestRegisterBatchPreservesInputOrder() {
	ctx := context.Background()
	const n = 12
	inputs := make([]registration.StudentInput, 0, n)
	for i := 1; i <= n; i++ {
		s.seedCompleteDocs(i, documents.StatusValidSD)
		inputs = append(inputs, studentInput(i, 11))
	}

	// Randomized per-call latency shuffles completion order across workers.
	s.router.distanceFunc = func(origin, destination geo.Point) (float64, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return geo.Distance(origin, destination) * 1.3, nil
	}

	result, err := s.svc.RegisterBatch(ctx, inputs, 9, s.window)
	s.Require().NoError(err)
	s.Equal(int64(n), result.Created)

	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, i)
	}
	records, err := s.store.FindBySiswaIDs(ctx, ids)
	s.Require().NoError(err)
	s.Require().Len(records, n)
	for i, rec := range records {
		s.Equal(inputs[i].SiswaID, rec.SiswaID)
	}
}

func (s *ServiceSuite) TestRegisterBatchBoundsConcurrency() {
	ctx := context.Background()
	const n = 20
	inputs := make([]registration.StudentInput, 0, n)
	for i := 1; i <= n; i++ {
		s.seedCompleteDocs(i, documents.StatusValidSD)
		inputs = append(inputs, studentInput(i, 11))
	}
	s.router.delayPerCall = 2 * time.Millisecond

	_, err := s.svc.RegisterBatch(ctx, inputs, 9, s.window)
	s.Require().NoError(err)
	s.Equal(n, s.router.calls)
	s.LessOrEqual(s.router.maxInFlight, 4)
}

func (s *ServiceSuite) TestRegisterBatchRejectsEmpty() {
	_, err := s.svc.RegisterBatch(context.Background(), nil, 9, s.window)
	s.Require().Error(err)
	s.Equal(derrors.CodeBadRequest, derrors.CodeOf(err))
}

func (s *ServiceSuite) TestVerifyMany() {
	ctx := context.Background()
	a, err := s.store.Create(ctx, registration.Record{SiswaID: 1, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusBelumVerif})
	s.Require().NoError(err)
	b, err := s.store.Create(ctx, registration.Record{SiswaID: 2, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusBelumVerif})
	s.Require().NoError(err)

	touched, err := s.svc.VerifyMany(ctx, []int64{a.PendaftaranID, b.PendaftaranID})
	s.Require().NoError(err)
	s.Equal(int64(2), touched)

	_, err = s.svc.VerifyMany(ctx, nil)
	s.Require().Error(err)
	s.Equal(derrors.CodeBadRequest, derrors.CodeOf(err))
}

func (s *ServiceSuite) TestZoneSchool() {
	zone, err := s.svc.ZoneSchool(context.Background(), 11)
	s.Require().NoError(err)
	s.Equal(200, zone.SekolahID)

	_, err = s.svc.ZoneSchool(context.Background(), 404)
	s.Require().Error(err)
	s.Equal(derrors.CodeNotFound, derrors.CodeOf(err))
}

func (s *ServiceSuite) TestNearestCandidatesRanking() {
	origin := geo.Point{Lat: -8.65, Lon: 115.21}

	candidates, err := s.svc.NearestCandidates(context.Background(), origin, 3)
	s.Require().NoError(err)
	s.Require().Len(candidates, 3)
	for i := 1; i < len(candidates); i++ {
		s.LessOrEqual(candidates[i-1].JarakLurus, candidates[i].JarakLurus)
	}

	all, err := s.svc.NearestCandidates(context.Background(), origin, 10)
	s.Require().NoError(err)
	s.Len(all, 4)
}

func (s *ServiceSuite) TestNearestSchoolRoutedDistanceWins() {
	lat, lon := -8.65, 115.21
	s.store.SeedStudent(registration.Student{SiswaID: 1, Nama: "Kadek Ayu", NISN: "0051", Lintang: &lat, Bujur: &lon})

	// The routed network inverts the geodesic ranking: school 200 is closest
	// as the crow flies but 201 has the shortest route.
	s.router.distanceFunc = func(_, destination geo.Point) (float64, error) {
		if destination.Lat == -8.70 && destination.Lon == 115.25 {
			return 900, nil
		}
		return 5000, nil
	}

	result, err := s.svc.NearestSchool(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(201, result.Sekolah.SekolahID)
	s.Equal(900.0, result.JarakRute)
	s.Equal(3, s.router.calls)
}

func (s *ServiceSuite) TestConfirmRoutedGroupsCandidates() {
	ctx := context.Background()
	origin := geo.Point{Lat: -8.65, Lon: 115.21}

	// Seven SMP schools forces a second confirmation group.
	s.store.SeedSchool(registration.School{SekolahID: 204, SekolahNama: "SMPN 5 Denpasar", Jenjang: "SMP", Lintang: -8.55, Bujur: 115.15})
	s.store.SeedSchool(registration.School{SekolahID: 205, SekolahNama: "SMPN 6 Denpasar", Jenjang: "SMP", Lintang: -8.50, Bujur: 115.10})
	s.store.SeedSchool(registration.School{SekolahID: 206, SekolahNama: "SMPN 7 Denpasar", Jenjang: "SMP", Lintang: -8.45, Bujur: 115.05})

	candidates, err := s.svc.NearestCandidates(ctx, origin, 7)
	s.Require().NoError(err)
	s.Require().Len(candidates, 7)

	// Each destination answers with its school id so slot i is attributable.
	byCoord := make(map[geo.Point]float64, len(candidates))
	for _, c := range candidates {
		byCoord[geo.Point{Lat: c.Lintang, Lon: c.Bujur}] = float64(c.SekolahID)
	}
	s.router.distanceFunc = func(_, destination geo.Point) (float64, error) {
		return byCoord[destination], nil
	}
	s.router.delayPerCall = 2 * time.Millisecond

	const pause = 40 * time.Millisecond
	s.svc.confirmPause = pause

	start := time.Now()
	routed, err := s.svc.confirmRouted(ctx, origin, candidates)
	elapsed := time.Since(start)
	s.Require().NoError(err)

	s.Equal(7, s.router.calls)
	s.LessOrEqual(s.router.maxInFlight, 5)
	s.GreaterOrEqual(elapsed, pause)

	s.Require().Len(routed, 7)
	for i, c := range candidates {
		s.Equal(float64(c.SekolahID), routed[i])
	}
}

func (s *ServiceSuite) TestNearestSchoolUnknownStudent() {
	_, err := s.svc.NearestSchool(context.Background(), 404)
	s.Require().Error(err)
	s.Equal(derrors.CodeNotFound, derrors.CodeOf(err))
}

func (s *ServiceSuite) TestNearestSchoolMissingCoordinates() {
	s.store.SeedStudent(registration.Student{SiswaID: 2, Nama: "Wayan Bagus", NISN: "0052"})

	_, err := s.svc.NearestSchool(context.Background(), 2)
	s.Require().Error(err)
	s.Equal(derrors.CodeNotFound, derrors.CodeOf(err))
	s.Contains(err.Error(), "no coordinates")
}
