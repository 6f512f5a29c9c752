// Package registration owns the zonasi assignment core: document gates, zone
// resolution, distance computation, and the batch pipeline that turns student
// inputs into persistable registration records.
package registration

import (
	"time"

	derrors "zonasi/pkg/domain-errors"
)

// Status is the registration lifecycle status.
type Status string

const (
	// StatusBelumVerif: documents incomplete or not yet verified.
	StatusBelumVerif Status = "BELUM_VERIF"
	// StatusVerifSD: documents verified, eligible at the origin tier.
	StatusVerifSD Status = "VERIF_SD"
	// StatusVerifSMP: confirmed at the destination tier.
	StatusVerifSMP Status = "VERIF_SMP"
)

// IsValid reports whether s is a member of the closed status set.
func (s Status) IsValid() bool {
	switch s {
	case StatusBelumVerif, StatusVerifSD, StatusVerifSMP:
		return true
	}
	return false
}

// StudentInput is one student submitted for registration.
type StudentInput struct {
	SiswaID      int       `json:"siswa_id"`
	BanjarID     int       `json:"banjar_id"`
	TanggalLahir time.Time `json:"tanggal_lahir"`
	Lintang      float64   `json:"lintang"`
	Bujur        float64   `json:"bujur"`
	Keterangan   *string   `json:"keterangan,omitempty"`
}

// Validate enforces the input invariants before the pipeline runs.
func (in StudentInput) Validate() error {
	if in.SiswaID <= 0 {
		return derrors.New(derrors.CodeBadRequest, "siswa_id must be a positive integer")
	}
	if in.BanjarID <= 0 {
		return derrors.New(derrors.CodeBadRequest, "banjar_id must be a positive integer")
	}
	if in.Lintang < -90 || in.Lintang > 90 {
		return derrors.Newf(derrors.CodeBadRequest, "lintang %v out of range [-90,90]", in.Lintang)
	}
	if in.Bujur < -180 || in.Bujur > 180 {
		return derrors.Newf(derrors.CodeBadRequest, "bujur %v out of range [-180,180]", in.Bujur)
	}
	return nil
}

// Record is a persistable registration. The pipeline constructs it once; after
// persistence only the status-transition operation may touch it.
type Record struct {
	PendaftaranID  int64     `json:"pendaftaran_id"`
	SiswaID        int       `json:"siswa_id"`
	PeriodeJalurID int       `json:"periode_jalur_id"`
	SekolahID      int       `json:"sekolah_id"`
	UmurSiswa      int       `json:"umur_siswa"`
	JarakLurus     float64   `json:"jarak_lurus"`
	JarakRute      float64   `json:"jarak_rute"`
	Status         Status    `json:"status"`
	// StatusKelulusan is set by the later selection flow; empty at creation.
	StatusKelulusan string `json:"status_kelulusan,omitempty"`
	Keterangan     *string   `json:"keterangan,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ZoneMapping assigns a banjar to its destination school.
type ZoneMapping struct {
	BanjarID    int     `json:"banjar_id"`
	SekolahID   int     `json:"sekolah_id"`
	SekolahNama string  `json:"sekolah_nama"`
	Lintang     float64 `json:"lintang"`
	Bujur       float64 `json:"bujur"`
}

// School is a destination institution.
type School struct {
	SekolahID   int     `json:"sekolah_id"`
	SekolahNama string  `json:"sekolah_nama"`
	Jenjang     string  `json:"jenjang"`
	Lintang     float64 `json:"lintang"`
	Bujur       float64 `json:"bujur"`
}

// Student is the subset of student master data the nearest-school flow needs.
// Coordinates are pointers because legacy rows may lack them.
type Student struct {
	SiswaID       int      `json:"siswa_id"`
	Nama          string   `json:"nama"`
	NISN          string   `json:"nisn"`
	SekolahAsalID *int     `json:"sekolah_asal_id"`
	Lintang       *float64 `json:"lintang"`
	Bujur         *float64 `json:"bujur"`
}

// Candidate is an ephemeral geodesic ranking entry. Never persisted.
type Candidate struct {
	School
	JarakLurus float64 `json:"jarak_lurus"`
}

// BatchResult aggregates a batch run: records created for new students plus
// existing registrations reconciled to VERIF_SD.
type BatchResult struct {
	Total   int64 `json:"count"`
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// AgeInDays returns the whole-day difference between the midnight-normalized
// date of birth and registration-window start. A birth date after the window
// start yields a negative value; callers treat that as a data-quality signal,
// not an error.
func AgeInDays(birth, windowStart time.Time) int {
	from := startOfDay(birth)
	to := startOfDay(windowStart)
	return int(to.Sub(from) / (24 * time.Hour))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
