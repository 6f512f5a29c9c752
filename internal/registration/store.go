package registration

import (
	"context"

	"zonasi/internal/documents"
)

// Store is the persistence contract for registrations and the read models the
// pipeline depends on. Implementations return pkg/platform/sentinel errors;
// services translate them into domain errors.
type Store interface {
	// CreateMany persists a batch of records in one call and returns the count.
	CreateMany(ctx context.Context, records []Record) (int64, error)

	// Create persists a single record and returns it with its assigned id.
	Create(ctx context.Context, record Record) (Record, error)

	// FindBySiswaIDs returns existing registrations for any of the students.
	FindBySiswaIDs(ctx context.Context, siswaIDs []int) ([]Record, error)

	// UpdateStatusMany transitions the given registrations and returns the
	// number of rows touched.
	UpdateStatusMany(ctx context.Context, pendaftaranIDs []int64, status Status) (int64, error)

	// FindZoneMapping resolves one banjar. Absence is sentinel.ErrNotFound.
	FindZoneMapping(ctx context.Context, banjarID int) (ZoneMapping, error)

	// FindZoneMappings resolves a set of banjars in one fetch. Missing banjars
	// are simply absent from the result; callers decide whether that is fatal.
	FindZoneMappings(ctx context.Context, banjarIDs []int) (map[int]ZoneMapping, error)

	// FindStudentDocuments returns submitted documents for the students.
	FindStudentDocuments(ctx context.Context, siswaIDs []int) ([]documents.StudentDocument, error)

	// FindSchoolsByTier returns the destination catalog for a tier.
	FindSchoolsByTier(ctx context.Context, jenjang string) ([]School, error)

	// FindStudent returns student master data. Absence is sentinel.ErrNotFound.
	FindStudent(ctx context.Context, siswaID int) (Student, error)

	// List returns a page of registrations plus the unpaged total.
	List(ctx context.Context, query ListQuery) ([]ListItem, int64, error)

	// ListBySiswa returns all registrations of one student.
	ListBySiswa(ctx context.Context, siswaID int) ([]Record, error)
}
