package handler

import (
	"net/http"
	"strconv"
	"time"

	"zonasi/internal/registration"
	derrors "zonasi/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// StudentPayload is the wire shape of one student submission.
type StudentPayload struct {
	SiswaID      int     `json:"siswa_id"`
	BanjarID     int     `json:"banjar_id"`
	TanggalLahir string  `json:"tanggal_lahir"`
	Lintang      float64 `json:"lintang"`
	Bujur        float64 `json:"bujur"`
	Keterangan   *string `json:"keterangan,omitempty"`
}

// ToInput parses the payload into the domain input. Dates accept the plain
// date layout or RFC 3339.
func (p StudentPayload) ToInput() (registration.StudentInput, error) {
	birth, err := time.Parse(dateLayout, p.TanggalLahir)
	if err != nil {
		birth, err = time.Parse(time.RFC3339, p.TanggalLahir)
		if err != nil {
			return registration.StudentInput{}, derrors.Newf(derrors.CodeBadRequest,
				"tanggal_lahir %q is not a valid date", p.TanggalLahir)
		}
	}
	input := registration.StudentInput{
		SiswaID:      p.SiswaID,
		BanjarID:     p.BanjarID,
		TanggalLahir: birth,
		Lintang:      p.Lintang,
		Bujur:        p.Bujur,
		Keterangan:   p.Keterangan,
	}
	if err := input.Validate(); err != nil {
		return registration.StudentInput{}, err
	}
	return input, nil
}

// BatchRequest is the wire shape of a batch submission.
type BatchRequest struct {
	Siswa []StudentPayload `json:"siswa"`
}

// VerifyRequest is the wire shape of a bulk verification.
type VerifyRequest struct {
	PendaftaranIDs []int64 `json:"pendaftaran_ids"`
}

// parseListQuery builds a typed listing query from URL parameters. Unset page
// and limit default to the first page of ten.
func parseListQuery(r *http.Request) (registration.ListQuery, error) {
	q := r.URL.Query()

	query := registration.ListQuery{
		Tier:  registration.Tier(q.Get("jenjang")),
		Page:  1,
		Limit: 10,
	}

	var err error
	if query.SekolahID, err = intParam(q.Get("sekolah_id"), "sekolah_id"); err != nil {
		return registration.ListQuery{}, err
	}
	if query.PeriodeJalurID, err = intParam(q.Get("periode_jalur_id"), "periode_jalur_id"); err != nil {
		return registration.ListQuery{}, err
	}
	if raw := q.Get("page"); raw != "" {
		if query.Page, err = intParam(raw, "page"); err != nil {
			return registration.ListQuery{}, err
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if query.Limit, err = intParam(raw, "limit"); err != nil {
			return registration.ListQuery{}, err
		}
	}

	if raw := q.Get("status"); raw != "" {
		status := registration.Status(raw)
		query.Filters.Status = &status
	}
	query.Filters.Nama = q.Get("nama")
	query.Filters.NISN = q.Get("nisn")
	if raw := q.Get("valid_docs"); raw != "" {
		n, err := intParam(raw, "valid_docs")
		if err != nil {
			return registration.ListQuery{}, err
		}
		bucket := registration.ValidDocBucket(n)
		query.Filters.ValidDocs = &bucket
	}

	if err := query.Validate(); err != nil {
		return registration.ListQuery{}, err
	}
	return query, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, derrors.Newf(derrors.CodeBadRequest, "%s is required", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, derrors.Newf(derrors.CodeBadRequest, "%s must be an integer", name)
	}
	return n, nil
}
