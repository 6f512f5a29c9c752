package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"zonasi/internal/documents"
	"zonasi/internal/registration"
	"zonasi/pkg/platform/sentinel"
)

// PostgresStore implements registration.Store on pgx. Listing queries compile
// the typed filter predicates into parameterized SQL; no string-built
// conditions from request input.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateMany(ctx context.Context, records []registration.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.SiswaID, rec.PeriodeJalurID, rec.SekolahID, rec.UmurSiswa,
			rec.JarakLurus, rec.JarakRute, string(rec.Status), rec.Keterangan, rec.CreatedAt,
		})
	}
	count, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"m_pendaftaran"},
		[]string{"siswa_id", "periode_jalur_id", "sekolah_id", "umur_siswa", "jarak_lurus", "jarak_rute", "status", "keterangan", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("create registrations: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Create(ctx context.Context, record registration.Record) (registration.Record, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO m_pendaftaran
			(siswa_id, periode_jalur_id, sekolah_id, umur_siswa, jarak_lurus, jarak_rute, status, keterangan, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING pendaftaran_id`,
		record.SiswaID, record.PeriodeJalurID, record.SekolahID, record.UmurSiswa,
		record.JarakLurus, record.JarakRute, string(record.Status), record.Keterangan, record.CreatedAt,
	).Scan(&record.PendaftaranID)
	if err != nil {
		return registration.Record{}, fmt.Errorf("create registration: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) FindBySiswaIDs(ctx context.Context, siswaIDs []int) ([]registration.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pendaftaran_id, siswa_id, periode_jalur_id, sekolah_id, umur_siswa,
		       jarak_lurus, jarak_rute, status, COALESCE(status_kelulusan, ''), keterangan, created_at
		FROM m_pendaftaran
		WHERE siswa_id = ANY($1)
		ORDER BY pendaftaran_id`, siswaIDs)
	if err != nil {
		return nil, fmt.Errorf("find registrations by students: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) UpdateStatusMany(ctx context.Context, pendaftaranIDs []int64, status registration.Status) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE m_pendaftaran SET status = $1 WHERE pendaftaran_id = ANY($2)`,
		string(status), pendaftaranIDs)
	if err != nil {
		return 0, fmt.Errorf("update registration statuses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) FindZoneMapping(ctx context.Context, banjarID int) (registration.ZoneMapping, error) {
	var zone registration.ZoneMapping
	err := s.pool.QueryRow(ctx, `
		SELECT z.banjar_id, sk.sekolah_id, sk.sekolah_nama, sk.lintang, sk.bujur
		FROM m_zonasi z
		JOIN m_sekolahs sk ON sk.sekolah_id = z.sekolah_id
		WHERE z.banjar_id = $1`, banjarID,
	).Scan(&zone.BanjarID, &zone.SekolahID, &zone.SekolahNama, &zone.Lintang, &zone.Bujur)
	if errors.Is(err, pgx.ErrNoRows) {
		return registration.ZoneMapping{}, sentinel.ErrNotFound
	}
	if err != nil {
		return registration.ZoneMapping{}, fmt.Errorf("find zone mapping: %w", err)
	}
	return zone, nil
}

func (s *PostgresStore) FindZoneMappings(ctx context.Context, banjarIDs []int) (map[int]registration.ZoneMapping, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT z.banjar_id, sk.sekolah_id, sk.sekolah_nama, sk.lintang, sk.bujur
		FROM m_zonasi z
		JOIN m_sekolahs sk ON sk.sekolah_id = z.sekolah_id
		WHERE z.banjar_id = ANY($1)`, banjarIDs)
	if err != nil {
		return nil, fmt.Errorf("find zone mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[int]registration.ZoneMapping)
	for rows.Next() {
		var zone registration.ZoneMapping
		if err := rows.Scan(&zone.BanjarID, &zone.SekolahID, &zone.SekolahNama, &zone.Lintang, &zone.Bujur); err != nil {
			return nil, fmt.Errorf("scan zone mapping: %w", err)
		}
		out[zone.BanjarID] = zone
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindStudentDocuments(ctx context.Context, siswaIDs []int) ([]documents.StudentDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT siswa_id, dokumen_id, status
		FROM dokumen_siswa
		WHERE siswa_id = ANY($1)`, siswaIDs)
	if err != nil {
		return nil, fmt.Errorf("find student documents: %w", err)
	}
	defer rows.Close()

	var out []documents.StudentDocument
	for rows.Next() {
		var doc documents.StudentDocument
		if err := rows.Scan(&doc.SiswaID, &doc.DokumenID, &doc.Status); err != nil {
			return nil, fmt.Errorf("scan student document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindSchoolsByTier(ctx context.Context, jenjang string) ([]registration.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sekolah_id, sekolah_nama, jenjang, lintang, bujur
		FROM m_sekolahs
		WHERE jenjang = $1
		ORDER BY sekolah_id`, jenjang)
	if err != nil {
		return nil, fmt.Errorf("find schools by tier: %w", err)
	}
	defer rows.Close()

	var out []registration.School
	for rows.Next() {
		var school registration.School
		if err := rows.Scan(&school.SekolahID, &school.SekolahNama, &school.Jenjang, &school.Lintang, &school.Bujur); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		out = append(out, school)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindStudent(ctx context.Context, siswaID int) (registration.Student, error) {
	var student registration.Student
	err := s.pool.QueryRow(ctx, `
		SELECT siswa_id, nama, nisn, sekolah_asal_id, lintang, bujur
		FROM m_siswas
		WHERE siswa_id = $1`, siswaID,
	).Scan(&student.SiswaID, &student.Nama, &student.NISN, &student.SekolahAsalID, &student.Lintang, &student.Bujur)
	if errors.Is(err, pgx.ErrNoRows) {
		return registration.Student{}, sentinel.ErrNotFound
	}
	if err != nil {
		return registration.Student{}, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

func (s *PostgresStore) List(ctx context.Context, query registration.ListQuery) ([]registration.ListItem, int64, error) {
	where, args := compileListFilters(query)

	base := `
		FROM m_pendaftaran p
		JOIN m_siswas s ON s.siswa_id = p.siswa_id
		LEFT JOIN (
			SELECT siswa_id, COUNT(*) AS valid_count
			FROM dokumen_siswa
			WHERE status = 'VALID_SMP'
			GROUP BY siswa_id
		) ds ON ds.siswa_id = s.siswa_id
		LEFT JOIN m_sekolahs skt ON p.sekolah_id = skt.sekolah_id
		LEFT JOIN m_sekolahs sk ON s.sekolah_asal_id = sk.sekolah_id
		WHERE ` + where

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+base, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	listArgs := append(args, query.Limit, offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT p.pendaftaran_id, s.siswa_id, s.nama, s.nisn,
		       p.status, COALESCE(p.status_kelulusan, ''), p.keterangan,
		       COALESCE(ds.valid_count, 0),
		       COALESCE(s.lintang, 0), COALESCE(s.bujur, 0),
		       sk.sekolah_id, sk.sekolah_nama,
		       skt.sekolah_id, skt.sekolah_nama
		%s
		ORDER BY p.pendaftaran_id
		LIMIT $%d OFFSET $%d`, base, len(args)+1, len(args)+2), listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var items []registration.ListItem
	for rows.Next() {
		var item registration.ListItem
		var status string
		var asalID *int
		var asalNama *string
		var tujuanID *int
		var tujuanNama *string
		if err := rows.Scan(
			&item.PendaftaranID, &item.SiswaID, &item.Nama, &item.NISN,
			&status, &item.StatusKelulusan, &item.Keterangan,
			&item.TotalDokumenValid, &item.Lintang, &item.Bujur,
			&asalID, &asalNama, &tujuanID, &tujuanNama,
		); err != nil {
			return nil, 0, fmt.Errorf("scan registration row: %w", err)
		}
		item.Status = registration.Status(status)
		item.IsAllDokumenValid = item.TotalDokumenValid == 4
		if asalID != nil && asalNama != nil {
			item.SekolahAsal = &registration.SchoolRef{SekolahID: *asalID, SekolahNama: *asalNama}
		}
		if tujuanID != nil && tujuanNama != nil {
			item.SekolahTujuan = registration.SchoolRef{SekolahID: *tujuanID, SekolahNama: *tujuanNama}
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (s *PostgresStore) ListBySiswa(ctx context.Context, siswaID int) ([]registration.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pendaftaran_id, siswa_id, periode_jalur_id, sekolah_id, umur_siswa,
		       jarak_lurus, jarak_rute, status, COALESCE(status_kelulusan, ''), keterangan, created_at
		FROM m_pendaftaran
		WHERE siswa_id = $1
		ORDER BY pendaftaran_id`, siswaID)
	if err != nil {
		return nil, fmt.Errorf("list registrations by student: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// compileListFilters turns the typed predicate set into a parameterized WHERE
// clause. Every value travels as an argument; the SQL text depends only on
// which predicates are present.
func compileListFilters(query registration.ListQuery) (string, []any) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch query.Tier {
	case registration.TierSD:
		conds = append(conds, "sk.sekolah_id = "+arg(query.SekolahID))
	case registration.TierSMP:
		conds = append(conds, "skt.sekolah_id = "+arg(query.SekolahID))
	}

	conds = append(conds, "p.periode_jalur_id = "+arg(query.PeriodeJalurID))

	if query.Filters.Status != nil {
		conds = append(conds, "p.status = "+arg(string(*query.Filters.Status)))
	} else {
		conds = append(conds, "p.status IN ('VERIF_SD', 'VERIF_SMP')")
	}

	if query.Filters.Nama != "" {
		conds = append(conds, "s.nama ILIKE "+arg("%"+query.Filters.Nama+"%"))
	}
	if query.Filters.NISN != "" {
		conds = append(conds, "s.nisn LIKE "+arg("%"+query.Filters.NISN+"%"))
	}

	if query.Filters.ValidDocs != nil {
		switch *query.Filters.ValidDocs {
		case registration.BucketNoneValid:
			conds = append(conds, "COALESCE(ds.valid_count, 0) = 0")
		case registration.BucketOneValid:
			conds = append(conds, "COALESCE(ds.valid_count, 0) = 1")
		case registration.BucketSomeValid:
			conds = append(conds, "COALESCE(ds.valid_count, 0) > 1 AND COALESCE(ds.valid_count, 0) < 4")
		case registration.BucketAllValid:
			conds = append(conds, "COALESCE(ds.valid_count, 0) = 4")
		}
	}

	return strings.Join(conds, " AND "), args
}

func scanRecords(rows pgx.Rows) ([]registration.Record, error) {
	var out []registration.Record
	for rows.Next() {
		var rec registration.Record
		var status string
		if err := rows.Scan(
			&rec.PendaftaranID, &rec.SiswaID, &rec.PeriodeJalurID, &rec.SekolahID, &rec.UmurSiswa,
			&rec.JarakLurus, &rec.JarakRute, &status, &rec.StatusKelulusan, &rec.Keterangan, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		rec.Status = registration.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
