package service

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"zonasi/internal/geo"
	"zonasi/internal/registration"
	derrors "zonasi/pkg/domain-errors"
)

// NearestResult is the winning school for one student with both distance
// measures attached.
type NearestResult struct {
	Sekolah    registration.School `json:"sekolah"`
	JarakLurus float64             `json:"jarak_lurus"`
	JarakRute  float64             `json:"jarak_rute"`
}

// NearestSchool finds the SMP closest to a student by routed distance. The
// geodesic measure prunes the catalog down to the top candidates, then each
// candidate is confirmed against the routing provider and the shortest route
// wins.
func (s *Service) NearestSchool(ctx context.Context, siswaID int) (NearestResult, error) {
	student, err := s.store.FindStudent(ctx, siswaID)
	if err != nil {
		return NearestResult{}, derrors.Newf(derrors.CodeNotFound, "siswa with id %d not found", siswaID)
	}
	if student.Lintang == nil || student.Bujur == nil {
		return NearestResult{}, derrors.Newf(derrors.CodeNotFound, "siswa with id %d has no coordinates", siswaID)
	}
	origin := geo.Point{Lat: *student.Lintang, Lon: *student.Bujur}

	candidates, err := s.NearestCandidates(ctx, origin, 3)
	if err != nil {
		return NearestResult{}, err
	}
	if len(candidates) == 0 {
		return NearestResult{}, derrors.New(derrors.CodeNotFound, "no sekolah available")
	}

	routed, err := s.confirmRouted(ctx, origin, candidates)
	if err != nil {
		return NearestResult{}, err
	}

	best := 0
	for i := range routed {
		if routed[i] < routed[best] {
			best = i
		}
	}
	return NearestResult{
		Sekolah:    candidates[best].School,
		JarakLurus: candidates[best].JarakLurus,
		JarakRute:  routed[best],
	}, nil
}

// NearestCandidates ranks all SMP schools by geodesic distance from origin and
// returns the closest k, ascending. Ties keep the stable school ordering of
// the store.
func (s *Service) NearestCandidates(ctx context.Context, origin geo.Point, k int) ([]registration.Candidate, error) {
	schools, err := s.store.FindSchoolsByTier(ctx, "SMP")
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load sekolah catalog")
	}

	candidates := make([]registration.Candidate, 0, len(schools))
	for _, school := range schools {
		candidates = append(candidates, registration.Candidate{
			School:     school,
			JarakLurus: geo.Distance(origin, geo.Point{Lat: school.Lintang, Lon: school.Bujur}),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].JarakLurus < candidates[j].JarakLurus
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// confirmRouted fetches routed distances for all candidates, in groups with a
// pause in between to stay friendly to the provider. Output index i matches
// candidates[i].
func (s *Service) confirmRouted(ctx context.Context, origin geo.Point, candidates []registration.Candidate) ([]float64, error) {
	routed := make([]float64, len(candidates))

	for start := 0; start < len(candidates); start += s.confirmGroupSize {
		end := start + s.confirmGroupSize
		if end > len(candidates) {
			end = len(candidates)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				destination := geo.Point{Lat: candidates[i].School.Lintang, Lon: candidates[i].School.Bujur}
				d, err := s.routing.Distance(gctx, origin, destination)
				if err != nil {
					return derrors.Wrap(err, derrors.CodeUnavailable, "routing provider failed")
				}
				routed[i] = d
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if end < len(candidates) && s.confirmPause > 0 {
			select {
			case <-time.After(s.confirmPause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return routed, nil
}
