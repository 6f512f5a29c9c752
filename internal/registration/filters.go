package registration

import derrors "zonasi/pkg/domain-errors"

// Tier selects which side of the assignment a listing filters on: the origin
// school (SD) or the destination school (SMP).
type Tier string

const (
	TierSD  Tier = "SD"
	TierSMP Tier = "SMP"
)

// ValidDocBucket groups registrations by how many of their documents carry the
// destination-tier validity marker.
type ValidDocBucket int

const (
	BucketNoneValid ValidDocBucket = 0 // zero valid documents
	BucketOneValid  ValidDocBucket = 1 // exactly one
	BucketSomeValid ValidDocBucket = 2 // two or three
	BucketAllValid  ValidDocBucket = 3 // all four
)

// ListFilters is the closed set of typed predicates for listing queries. The
// legacy system built these from free-form filter maps concatenated into SQL;
// typed variants compile to parameterized queries instead.
type ListFilters struct {
	Status    *Status
	Nama      string
	NISN      string
	ValidDocs *ValidDocBucket
}

// ListQuery describes one paginated listing request.
type ListQuery struct {
	Tier           Tier
	SekolahID      int
	PeriodeJalurID int
	Page           int
	Limit          int
	Filters        ListFilters
}

// Validate checks query invariants shared by both store implementations.
func (q ListQuery) Validate() error {
	if q.Tier != TierSD && q.Tier != TierSMP {
		return derrors.Newf(derrors.CodeBadRequest, "unknown tier %q", string(q.Tier))
	}
	if q.Page < 1 {
		return derrors.New(derrors.CodeBadRequest, "page must be >= 1")
	}
	if q.Limit < 1 {
		return derrors.New(derrors.CodeBadRequest, "limit must be >= 1")
	}
	if q.Filters.Status != nil && !q.Filters.Status.IsValid() {
		return derrors.Newf(derrors.CodeBadRequest, "unknown status %q", string(*q.Filters.Status))
	}
	if q.Filters.ValidDocs != nil {
		if b := *q.Filters.ValidDocs; b < BucketNoneValid || b > BucketAllValid {
			return derrors.Newf(derrors.CodeBadRequest, "unknown valid-document bucket %d", int(b))
		}
	}
	return nil
}

// MatchesBucket reports whether a valid-document count falls into the bucket.
func MatchesBucket(bucket ValidDocBucket, validCount int) bool {
	switch bucket {
	case BucketNoneValid:
		return validCount == 0
	case BucketOneValid:
		return validCount == 1
	case BucketSomeValid:
		return validCount > 1 && validCount < 4
	case BucketAllValid:
		return validCount == 4
	}
	return false
}

// SchoolRef identifies a school in listing output.
type SchoolRef struct {
	SekolahID   int    `json:"sekolah_id"`
	SekolahNama string `json:"sekolah_nama"`
}

// ListItem is one row of a paginated listing, joined with student master data.
type ListItem struct {
	PendaftaranID     int64      `json:"pendaftaran_id"`
	SiswaID           int        `json:"siswa_id"`
	Nama              string     `json:"nama"`
	NISN              string     `json:"nisn"`
	Status            Status     `json:"status"`
	StatusKelulusan   string     `json:"status_kelulusan"`
	Keterangan        *string    `json:"keterangan"`
	TotalDokumenValid int        `json:"total_dokumen_valid"`
	IsAllDokumenValid bool       `json:"is_all_dokumen_valid"`
	Lintang           float64    `json:"lintang"`
	Bujur             float64    `json:"bujur"`
	SekolahAsal       *SchoolRef `json:"sekolah_asal"`
	SekolahTujuan     SchoolRef  `json:"sekolah_tujuan"`
}
