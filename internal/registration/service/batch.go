package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"zonasi/internal/documents"
	"zonasi/internal/registration"
	"zonasi/internal/schedule"
	derrors "zonasi/pkg/domain-errors"
)

// batchSnapshot holds everything the per-student workers need, loaded once up
// front so workers never touch the store or the catalog service.
type batchSnapshot struct {
	requiredKinds []int
	kindsBySiswa  map[int][]int
	zones         map[int]registration.ZoneMapping
}

// RegisterBatch runs the batch flow: reconcile already-registered students to
// VERIF_SD, then compute and insert records for the rest. The batch is
// all-or-nothing; the first per-student failure aborts it and nothing new is
// persisted. Reconciliation is idempotent, so a retried batch converges.
func (s *Service) RegisterBatch(ctx context.Context, inputs []registration.StudentInput, periodeJalurID int, window schedule.Window) (registration.BatchResult, error) {
	start := time.Now()
	result, err := s.registerBatch(ctx, inputs, periodeJalurID, window)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveBatch(outcome, len(inputs), time.Since(start))
	return result, err
}

func (s *Service) registerBatch(ctx context.Context, inputs []registration.StudentInput, periodeJalurID int, window schedule.Window) (registration.BatchResult, error) {
	if len(inputs) == 0 {
		return registration.BatchResult{}, derrors.New(derrors.CodeBadRequest, "at least one siswa is required")
	}
	for _, input := range inputs {
		if err := input.Validate(); err != nil {
			return registration.BatchResult{}, err
		}
	}

	siswaIDs := make([]int, 0, len(inputs))
	banjarIDs := make([]int, 0, len(inputs))
	for _, input := range inputs {
		siswaIDs = append(siswaIDs, input.SiswaID)
		banjarIDs = append(banjarIDs, input.BanjarID)
	}

	var (
		catalog  []documents.Requirement
		docs     []documents.StudentDocument
		zones    map[int]registration.ZoneMapping
		existing []registration.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = s.catalog.Catalog(gctx)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeUnavailable, "failed to load document catalog")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		docs, err = s.store.FindStudentDocuments(gctx, siswaIDs)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "failed to load student documents")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		zones, err = s.store.FindZoneMappings(gctx, banjarIDs)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "failed to resolve zones")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = s.store.FindBySiswaIDs(gctx, siswaIDs)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeInternal, "failed to load existing registrations")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return registration.BatchResult{}, err
	}

	// Only registrations of the same period count as already registered.
	registered := make(map[int]registration.Record, len(existing))
	for _, rec := range existing {
		if rec.PeriodeJalurID == periodeJalurID {
			registered[rec.SiswaID] = rec
		}
	}

	// Partition preserving input order: students already registered in this
	// period are reconciled, the rest go through the compute pipeline.
	var reconcileIDs []int64
	fresh := make([]registration.StudentInput, 0, len(inputs))
	for _, input := range inputs {
		if rec, ok := registered[input.SiswaID]; ok {
			reconcileIDs = append(reconcileIDs, rec.PendaftaranID)
			continue
		}
		fresh = append(fresh, input)
	}

	var updated int64
	if len(reconcileIDs) > 0 {
		var err error
		updated, err = s.store.UpdateStatusMany(ctx, reconcileIDs, registration.StatusVerifSD)
		if err != nil {
			return registration.BatchResult{}, derrors.Wrap(err, derrors.CodeInternal, "failed to reconcile registrations")
		}
		s.metrics.AddReconciled(float64(updated))
	}

	if len(fresh) == 0 {
		return registration.BatchResult{Total: updated, Updated: updated}, nil
	}

	snapshot := batchSnapshot{
		requiredKinds: documents.RequiredKinds(catalog),
		kindsBySiswa:  documents.KindsBySiswa(docs),
		zones:         zones,
	}

	records, err := s.computeRecords(ctx, fresh, periodeJalurID, window, snapshot)
	if err != nil {
		return registration.BatchResult{}, err
	}

	created, err := s.store.CreateMany(ctx, records)
	if err != nil {
		return registration.BatchResult{}, derrors.Wrap(err, derrors.CodeInternal, "failed to persist registrations")
	}
	s.metrics.IncCreated(string(registration.StatusVerifSD), float64(created))

	return registration.BatchResult{
		Total:   updated + created,
		Created: created,
		Updated: updated,
	}, nil
}

// computeRecords fans the per-student work out over a fixed pool of workers.
// Results land in index-addressed slots so output order always matches input
// order regardless of completion order. The first failure stops dispatch of
// further students; in-flight work drains before the error is returned.
func (s *Service) computeRecords(ctx context.Context, inputs []registration.StudentInput, periodeJalurID int, window schedule.Window, snapshot batchSnapshot) ([]registration.Record, error) {
	type task struct {
		idx   int
		input registration.StudentInput
	}

	records := make([]registration.Record, len(inputs))
	tasks := make(chan task)

	var (
		once     sync.Once
		firstErr error
	)
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			stopDispatch()
		})
	}

	var wg sync.WaitGroup
	workers := s.workers
	if workers > len(inputs) {
		workers = len(inputs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				rec, err := s.computeRecord(ctx, t.input, periodeJalurID, window, snapshot)
				if err != nil {
					fail(err)
					continue
				}
				records[t.idx] = rec
			}
		}()
	}

	for i, input := range inputs {
		select {
		case tasks <- task{idx: i, input: input}:
		case <-dispatchCtx.Done():
		}
		if dispatchCtx.Err() != nil {
			break
		}
	}
	close(tasks)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// computeRecord gates one student on document completeness and zone coverage,
// then computes distances and age. Unlike the single-student flow, an
// incomplete document set rejects the student instead of creating a
// BELUM_VERIF record.
func (s *Service) computeRecord(ctx context.Context, input registration.StudentInput, periodeJalurID int, window schedule.Window, snapshot batchSnapshot) (registration.Record, error) {
	kinds := snapshot.kindsBySiswa[input.SiswaID]
	if complete, _ := documents.Completeness(snapshot.requiredKinds, kinds); !complete {
		return registration.Record{}, incompleteDocumentsError(input.SiswaID)
	}

	zone, ok := snapshot.zones[input.BanjarID]
	if !ok {
		return registration.Record{}, zoneNotFoundError(input.BanjarID)
	}

	return s.assembleRecord(ctx, input, periodeJalurID, window, zone)
}
