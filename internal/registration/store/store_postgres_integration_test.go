//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"zonasi/internal/registration"
	"zonasi/internal/registration/store"
	"zonasi/pkg/platform/sentinel"
	"zonasi/pkg/testutil/containers"
)

const schema = `
CREATE TABLE IF NOT EXISTS m_sekolahs (
	sekolah_id   INT PRIMARY KEY,
	sekolah_nama TEXT NOT NULL,
	jenjang      TEXT NOT NULL,
	lintang      DOUBLE PRECISION NOT NULL DEFAULT 0,
	bujur        DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS m_siswas (
	siswa_id        INT PRIMARY KEY,
	nama            TEXT NOT NULL,
	nisn            TEXT NOT NULL,
	sekolah_asal_id INT,
	lintang         DOUBLE PRECISION,
	bujur           DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS m_zonasi (
	banjar_id  INT PRIMARY KEY,
	sekolah_id INT NOT NULL REFERENCES m_sekolahs (sekolah_id)
);

CREATE TABLE IF NOT EXISTS dokumen_siswa (
	siswa_id   INT NOT NULL,
	dokumen_id INT NOT NULL,
	status     TEXT NOT NULL,
	PRIMARY KEY (siswa_id, dokumen_id)
);

CREATE TABLE IF NOT EXISTS m_pendaftaran (
	pendaftaran_id   BIGSERIAL PRIMARY KEY,
	siswa_id         INT NOT NULL,
	periode_jalur_id INT NOT NULL,
	sekolah_id       INT NOT NULL,
	umur_siswa       INT NOT NULL DEFAULT 0,
	jarak_lurus      DOUBLE PRECISION NOT NULL DEFAULT 0,
	jarak_rute       DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	status_kelulusan TEXT,
	keterangan       TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.ExecSQL(context.Background(), schema))
	s.store = store.NewPostgresStore(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"m_pendaftaran", "dokumen_siswa", "m_zonasi", "m_siswas", "m_sekolahs"))

	seed := `
		INSERT INTO m_sekolahs (sekolah_id, sekolah_nama, jenjang, lintang, bujur) VALUES
			(100, 'SDN 1 Denpasar', 'SD', -8.64, 115.20),
			(200, 'SMPN 1 Denpasar', 'SMP', -8.66, 115.22),
			(201, 'SMPN 2 Denpasar', 'SMP', -8.70, 115.25);
		INSERT INTO m_siswas (siswa_id, nama, nisn, sekolah_asal_id, lintang, bujur) VALUES
			(1, 'Kadek Ayu', '0051', 100, -8.65, 115.21),
			(2, 'Wayan Bagus', '0052', 100, -8.64, 115.20);
		INSERT INTO m_zonasi (banjar_id, sekolah_id) VALUES (11, 200), (12, 201);
		INSERT INTO dokumen_siswa (siswa_id, dokumen_id, status) VALUES
			(1, 1, 'VALID_SMP'), (1, 2, 'VALID_SMP'), (1, 3, 'VALID_SMP'), (1, 4, 'VALID_SMP'),
			(2, 1, 'VALID_SMP');
	`
	s.Require().NoError(s.postgres.ExecSQL(ctx, seed))
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	rec, err := s.store.Create(ctx, registration.Record{
		SiswaID: 1, PeriodeJalurID: 9, SekolahID: 200, UmurSiswa: 4800,
		JarakLurus: 1540.2, JarakRute: 2100.7,
		Status: registration.StatusVerifSD, CreatedAt: time.Now(),
	})
	s.Require().NoError(err)
	s.NotZero(rec.PendaftaranID)

	found, err := s.store.FindBySiswaIDs(ctx, []int{1})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(rec.PendaftaranID, found[0].PendaftaranID)
	s.InDelta(2100.7, found[0].JarakRute, 0.001)
}

func (s *PostgresStoreSuite) TestCreateManyCopies() {
	ctx := context.Background()

	count, err := s.store.CreateMany(ctx, []registration.Record{
		{SiswaID: 1, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusVerifSD, CreatedAt: time.Now()},
		{SiswaID: 2, PeriodeJalurID: 9, SekolahID: 201, Status: registration.StatusVerifSD, CreatedAt: time.Now()},
	})
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	found, err := s.store.FindBySiswaIDs(ctx, []int{1, 2})
	s.Require().NoError(err)
	s.Len(found, 2)
}

func (s *PostgresStoreSuite) TestUpdateStatusMany() {
	ctx := context.Background()
	rec, err := s.store.Create(ctx, registration.Record{
		SiswaID: 1, PeriodeJalurID: 9, SekolahID: 200,
		Status: registration.StatusBelumVerif, CreatedAt: time.Now(),
	})
	s.Require().NoError(err)

	touched, err := s.store.UpdateStatusMany(ctx, []int64{rec.PendaftaranID, 9999}, registration.StatusVerifSD)
	s.Require().NoError(err)
	s.Equal(int64(1), touched)

	found, err := s.store.FindBySiswaIDs(ctx, []int{1})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(registration.StatusVerifSD, found[0].Status)
}

func (s *PostgresStoreSuite) TestZoneMappings() {
	ctx := context.Background()

	zone, err := s.store.FindZoneMapping(ctx, 11)
	s.Require().NoError(err)
	s.Equal(200, zone.SekolahID)
	s.Equal("SMPN 1 Denpasar", zone.SekolahNama)

	_, err = s.store.FindZoneMapping(ctx, 404)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	zones, err := s.store.FindZoneMappings(ctx, []int{11, 12, 404})
	s.Require().NoError(err)
	s.Len(zones, 2)
	s.Equal(201, zones[12].SekolahID)
}

func (s *PostgresStoreSuite) TestFindStudentAndSchools() {
	ctx := context.Background()

	student, err := s.store.FindStudent(ctx, 1)
	s.Require().NoError(err)
	s.Equal("Kadek Ayu", student.Nama)
	s.Require().NotNil(student.Lintang)
	s.InDelta(-8.65, *student.Lintang, 0.001)

	_, err = s.store.FindStudent(ctx, 404)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	schools, err := s.store.FindSchoolsByTier(ctx, "SMP")
	s.Require().NoError(err)
	s.Require().Len(schools, 2)
	s.Equal(200, schools[0].SekolahID)
}

func (s *PostgresStoreSuite) TestListFiltersCompile() {
	ctx := context.Background()

	_, err := s.store.CreateMany(ctx, []registration.Record{
		{SiswaID: 1, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusVerifSD, CreatedAt: time.Now()},
		{SiswaID: 2, PeriodeJalurID: 9, SekolahID: 200, Status: registration.StatusBelumVerif, CreatedAt: time.Now()},
	})
	s.Require().NoError(err)

	// Default status filter hides BELUM_VERIF rows.
	items, total, err := s.store.List(ctx, registration.ListQuery{
		Tier: registration.TierSMP, SekolahID: 200, PeriodeJalurID: 9, Page: 1, Limit: 10,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(items, 1)
	s.Equal("Kadek Ayu", items[0].Nama)
	s.Equal(4, items[0].TotalDokumenValid)
	s.True(items[0].IsAllDokumenValid)
	s.Require().NotNil(items[0].SekolahAsal)
	s.Equal(100, items[0].SekolahAsal.SekolahID)

	// Explicit status surfaces the hidden row.
	status := registration.StatusBelumVerif
	_, total, err = s.store.List(ctx, registration.ListQuery{
		Tier: registration.TierSMP, SekolahID: 200, PeriodeJalurID: 9, Page: 1, Limit: 10,
		Filters: registration.ListFilters{Status: &status},
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)

	// Name search is a case-insensitive substring match.
	_, total, err = s.store.List(ctx, registration.ListQuery{
		Tier: registration.TierSMP, SekolahID: 200, PeriodeJalurID: 9, Page: 1, Limit: 10,
		Filters: registration.ListFilters{Nama: "kadek"},
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)

	// Valid-document buckets.
	bucket := registration.BucketAllValid
	_, total, err = s.store.List(ctx, registration.ListQuery{
		Tier: registration.TierSMP, SekolahID: 200, PeriodeJalurID: 9, Page: 1, Limit: 10,
		Filters: registration.ListFilters{ValidDocs: &bucket},
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)

	// Origin-school scoping lists by the student's SD.
	_, total, err = s.store.List(ctx, registration.ListQuery{
		Tier: registration.TierSD, SekolahID: 100, PeriodeJalurID: 9, Page: 1, Limit: 10,
	})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}
