// Package documents handles the supporting-document catalog and the
// completeness and validity gates applied before a registration may proceed.
package documents

// Requirement is one catalog entry from the document service. The catalog is an
// immutable snapshot fetched once per batch.
type Requirement struct {
	DokumenID    int     `json:"dokumen_id"`
	DokumenJenis string  `json:"dokumen_jenis"`
	IsUmum       bool    `json:"is_umum"`
	Keterangan   *string `json:"keterangan"`
}

// StudentDocument is one submitted document with its validation status.
type StudentDocument struct {
	SiswaID   int    `json:"siswa_id"`
	DokumenID int    `json:"dokumen_id"`
	Status    string `json:"status"`
}

// Tier-specific validity markers applied by the document verification flow.
const (
	StatusValidSD  = "VALID_SD"
	StatusValidSMP = "VALID_SMP"
)

// RequiredKinds returns the universally required document-kind ids from a
// catalog snapshot, preserving catalog order.
func RequiredKinds(catalog []Requirement) []int {
	var kinds []int
	for _, req := range catalog {
		if req.IsUmum {
			kinds = append(kinds, req.DokumenID)
		}
	}
	return kinds
}

// Completeness reports whether every required kind appears among the submitted
// kind ids. Presence alone satisfies the gate; validation status is deliberately
// ignored here, the validity gate is separate.
func Completeness(requiredKinds []int, submittedKinds []int) (complete bool, missing []int) {
	submitted := make(map[int]struct{}, len(submittedKinds))
	for _, id := range submittedKinds {
		submitted[id] = struct{}{}
	}
	for _, id := range requiredKinds {
		if _, ok := submitted[id]; !ok {
			missing = append(missing, id)
		}
	}
	return len(missing) == 0, missing
}

// AllValid reports whether every submitted document carries the expected
// tier-specific validity status. An empty submission is vacuously valid; the
// completeness gate runs first and catches that case.
func AllValid(docs []StudentDocument, expectedStatus string) bool {
	for _, doc := range docs {
		if doc.Status != expectedStatus {
			return false
		}
	}
	return true
}

// KindsBySiswa groups submitted document kind ids by student.
func KindsBySiswa(docs []StudentDocument) map[int][]int {
	grouped := make(map[int][]int)
	for _, doc := range docs {
		grouped[doc.SiswaID] = append(grouped[doc.SiswaID], doc.DokumenID)
	}
	return grouped
}
