package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"zonasi/internal/documents"
	"zonasi/internal/registration"
	"zonasi/pkg/platform/sentinel"
)

// InMemoryStore implements registration.Store with mutex-guarded maps. It backs
// unit tests and local runs without PostgreSQL; master data (students, schools,
// zone mappings, documents) is seeded up front.
type InMemoryStore struct {
	mu sync.RWMutex

	nextID        int64
	registrations map[int64]registration.Record

	students  map[int]registration.Student
	schools   map[int]registration.School
	zones     map[int]registration.ZoneMapping
	studDocs  map[int][]documents.StudentDocument
	insertSeq []int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:        1,
		registrations: make(map[int64]registration.Record),
		students:      make(map[int]registration.Student),
		schools:       make(map[int]registration.School),
		zones:         make(map[int]registration.ZoneMapping),
		studDocs:      make(map[int][]documents.StudentDocument),
	}
}

// SeedStudent registers student master data.
func (s *InMemoryStore) SeedStudent(student registration.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.SiswaID] = student
}

// SeedSchool registers a school.
func (s *InMemoryStore) SeedSchool(school registration.School) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schools[school.SekolahID] = school
}

// SeedZone maps a banjar to its destination school.
func (s *InMemoryStore) SeedZone(zone registration.ZoneMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.BanjarID] = zone
}

// SeedDocument records one submitted document.
func (s *InMemoryStore) SeedDocument(doc documents.StudentDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.studDocs[doc.SiswaID] = append(s.studDocs[doc.SiswaID], doc)
}

func (s *InMemoryStore) CreateMany(_ context.Context, records []registration.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		rec.PendaftaranID = s.nextID
		s.nextID++
		s.registrations[rec.PendaftaranID] = rec
		s.insertSeq = append(s.insertSeq, rec.PendaftaranID)
	}
	return int64(len(records)), nil
}

func (s *InMemoryStore) Create(_ context.Context, record registration.Record) (registration.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.PendaftaranID = s.nextID
	s.nextID++
	s.registrations[record.PendaftaranID] = record
	s.insertSeq = append(s.insertSeq, record.PendaftaranID)
	return record, nil
}

func (s *InMemoryStore) FindBySiswaIDs(_ context.Context, siswaIDs []int) ([]registration.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[int]struct{}, len(siswaIDs))
	for _, id := range siswaIDs {
		wanted[id] = struct{}{}
	}
	var out []registration.Record
	for _, id := range s.insertSeq {
		rec := s.registrations[id]
		if _, ok := wanted[rec.SiswaID]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatusMany(_ context.Context, pendaftaranIDs []int64, status registration.Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var touched int64
	for _, id := range pendaftaranIDs {
		if rec, ok := s.registrations[id]; ok {
			rec.Status = status
			s.registrations[id] = rec
			touched++
		}
	}
	return touched, nil
}

func (s *InMemoryStore) FindZoneMapping(_ context.Context, banjarID int) (registration.ZoneMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	zone, ok := s.zones[banjarID]
	if !ok {
		return registration.ZoneMapping{}, sentinel.ErrNotFound
	}
	return zone, nil
}

func (s *InMemoryStore) FindZoneMappings(_ context.Context, banjarIDs []int) (map[int]registration.ZoneMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]registration.ZoneMapping)
	for _, id := range banjarIDs {
		if zone, ok := s.zones[id]; ok {
			out[id] = zone
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindStudentDocuments(_ context.Context, siswaIDs []int) ([]documents.StudentDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []documents.StudentDocument
	for _, id := range siswaIDs {
		out = append(out, s.studDocs[id]...)
	}
	return out, nil
}

func (s *InMemoryStore) FindSchoolsByTier(_ context.Context, jenjang string) ([]registration.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []registration.School
	for _, school := range s.schools {
		if school.Jenjang == jenjang {
			out = append(out, school)
		}
	}
	// Map iteration is random; stable catalog order keeps ranking ties stable.
	sort.Slice(out, func(i, j int) bool { return out[i].SekolahID < out[j].SekolahID })
	return out, nil
}

func (s *InMemoryStore) FindStudent(_ context.Context, siswaID int) (registration.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	student, ok := s.students[siswaID]
	if !ok {
		return registration.Student{}, sentinel.ErrNotFound
	}
	return student, nil
}

func (s *InMemoryStore) List(_ context.Context, query registration.ListQuery) ([]registration.ListItem, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []registration.ListItem
	for _, id := range s.insertSeq {
		rec := s.registrations[id]
		if rec.PeriodeJalurID != query.PeriodeJalurID {
			continue
		}
		item, ok := s.buildListItem(rec, query)
		if !ok {
			continue
		}
		matched = append(matched, item)
	}

	total := int64(len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *InMemoryStore) ListBySiswa(_ context.Context, siswaID int) ([]registration.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []registration.Record
	for _, id := range s.insertSeq {
		if rec := s.registrations[id]; rec.SiswaID == siswaID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// buildListItem joins one record with master data and applies the typed
// predicates. Callers hold s.mu.
func (s *InMemoryStore) buildListItem(rec registration.Record, query registration.ListQuery) (registration.ListItem, bool) {
	student, ok := s.students[rec.SiswaID]
	if !ok {
		return registration.ListItem{}, false
	}

	switch query.Tier {
	case registration.TierSD:
		if student.SekolahAsalID == nil || *student.SekolahAsalID != query.SekolahID {
			return registration.ListItem{}, false
		}
	case registration.TierSMP:
		if rec.SekolahID != query.SekolahID {
			return registration.ListItem{}, false
		}
	}

	if query.Filters.Status != nil {
		if rec.Status != *query.Filters.Status {
			return registration.ListItem{}, false
		}
	} else if rec.Status != registration.StatusVerifSD && rec.Status != registration.StatusVerifSMP {
		return registration.ListItem{}, false
	}

	if query.Filters.Nama != "" && !strings.Contains(strings.ToLower(student.Nama), strings.ToLower(query.Filters.Nama)) {
		return registration.ListItem{}, false
	}
	if query.Filters.NISN != "" && !strings.Contains(student.NISN, query.Filters.NISN) {
		return registration.ListItem{}, false
	}

	validCount := 0
	for _, doc := range s.studDocs[rec.SiswaID] {
		if doc.Status == documents.StatusValidSMP {
			validCount++
		}
	}
	if query.Filters.ValidDocs != nil && !registration.MatchesBucket(*query.Filters.ValidDocs, validCount) {
		return registration.ListItem{}, false
	}

	item := registration.ListItem{
		PendaftaranID:     rec.PendaftaranID,
		SiswaID:           student.SiswaID,
		Nama:              student.Nama,
		NISN:              student.NISN,
		Status:            rec.Status,
		StatusKelulusan:   rec.StatusKelulusan,
		Keterangan:        rec.Keterangan,
		TotalDokumenValid: validCount,
		IsAllDokumenValid: validCount == 4,
	}
	if student.Lintang != nil {
		item.Lintang = *student.Lintang
	}
	if student.Bujur != nil {
		item.Bujur = *student.Bujur
	}
	if student.SekolahAsalID != nil {
		if asal, ok := s.schools[*student.SekolahAsalID]; ok {
			item.SekolahAsal = &registration.SchoolRef{SekolahID: asal.SekolahID, SekolahNama: asal.SekolahNama}
		}
	}
	if tujuan, ok := s.schools[rec.SekolahID]; ok {
		item.SekolahTujuan = registration.SchoolRef{SekolahID: tujuan.SekolahID, SekolahNama: tujuan.SekolahNama}
	}
	return item, true
}
