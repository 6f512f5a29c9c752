// Package handler exposes the registration pipeline over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zonasi/internal/registration"
	"zonasi/internal/registration/service"
	"zonasi/internal/schedule"
	derrors "zonasi/pkg/domain-errors"
	"zonasi/pkg/platform/httputil"
	"zonasi/pkg/requestcontext"
)

// Service defines the registration operations the handler exposes.
type Service interface {
	Register(ctx context.Context, input registration.StudentInput, periodeJalurID int, window schedule.Window) (registration.Record, error)
	RegisterBatch(ctx context.Context, inputs []registration.StudentInput, periodeJalurID int, window schedule.Window) (registration.BatchResult, error)
	VerifyMany(ctx context.Context, pendaftaranIDs []int64) (int64, error)
	ZoneSchool(ctx context.Context, banjarID int) (registration.ZoneMapping, error)
	List(ctx context.Context, query registration.ListQuery) ([]registration.ListItem, int64, error)
	StudentRegistrations(ctx context.Context, siswaID int) ([]registration.Record, error)
	NearestSchool(ctx context.Context, siswaID int) (service.NearestResult, error)
}

// Handler wires registration endpoints to the service.
type Handler struct {
	service   Service
	schedules schedule.Client
	logger    *slog.Logger
}

// New constructs a registration handler with its dependencies.
func New(service Service, schedules schedule.Client, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		schedules: schedules,
		logger:    logger,
	}
}

// Register mounts registration endpoints on the router. Mutating pendaftaran
// endpoints sit behind the registration-window gate.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireRegistrationWindow(h.schedules, h.logger))
		r.Post("/pendaftaran", h.HandleRegister)
		r.Post("/pendaftaran/batch", h.HandleRegisterBatch)
	})
	r.Put("/pendaftaran/verifikasi", h.HandleVerify)
	r.Get("/pendaftaran", h.HandleList)
	r.Get("/pendaftaran/siswa/{siswaID}", h.HandleStudentRegistrations)
	r.Get("/zonasi/banjar/{banjarID}", h.HandleZoneSchool)
	r.Get("/siswa/{siswaID}/sekolah-terdekat", h.HandleNearestSchool)
}

// HandleRegister handles POST /pendaftaran requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	window, ok := WindowFromContext(ctx)
	if !ok {
		httputil.WriteError(w, derrors.New(derrors.CodeInternal, "registration window missing"))
		return
	}

	payload, ok := httputil.DecodeAndPrepare[StudentPayload](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	input, err := payload.ToInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.service.Register(ctx, input, window.PeriodeJalurID, window)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"siswa_id", input.SiswaID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration created",
		"request_id", requestID,
		"siswa_id", record.SiswaID,
		"pendaftaran_id", record.PendaftaranID,
		"status", record.Status,
	)
	httputil.WriteData(w, http.StatusCreated, record)
}

// HandleRegisterBatch handles POST /pendaftaran/batch requests.
func (h *Handler) HandleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	window, ok := WindowFromContext(ctx)
	if !ok {
		httputil.WriteError(w, derrors.New(derrors.CodeInternal, "registration window missing"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	inputs := make([]registration.StudentInput, 0, len(req.Siswa))
	for _, payload := range req.Siswa {
		input, err := payload.ToInput()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		inputs = append(inputs, input)
	}

	result, err := h.service.RegisterBatch(ctx, inputs, window.PeriodeJalurID, window)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch registration failed",
			"request_id", requestID,
			"batch_size", len(inputs),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "batch registration completed",
		"request_id", requestID,
		"batch_size", len(inputs),
		"created", result.Created,
		"updated", result.Updated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteData(w, http.StatusCreated, result)
}

// HandleVerify handles PUT /pendaftaran/verifikasi requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	touched, err := h.service.VerifyMany(ctx, req.PendaftaranIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]int64{"count": touched})
}

// HandleList handles GET /pendaftaran requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	items, total, err := h.service.List(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "listing registrations failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if items == nil {
		items = []registration.ListItem{}
	}

	httputil.WritePage(w, http.StatusOK, items, map[string]any{
		"page":  query.Page,
		"limit": query.Limit,
		"total": total,
	})
}

// HandleStudentRegistrations handles GET /pendaftaran/siswa/{siswaID} requests.
func (h *Handler) HandleStudentRegistrations(w http.ResponseWriter, r *http.Request) {
	siswaID, err := intParam(chi.URLParam(r, "siswaID"), "siswaID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.StudentRegistrations(r.Context(), siswaID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []registration.Record{}
	}
	httputil.WriteData(w, http.StatusOK, records)
}

// HandleZoneSchool handles GET /zonasi/banjar/{banjarID} requests.
func (h *Handler) HandleZoneSchool(w http.ResponseWriter, r *http.Request) {
	banjarID, err := intParam(chi.URLParam(r, "banjarID"), "banjarID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	zone, err := h.service.ZoneSchool(r.Context(), banjarID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, zone)
}

// HandleNearestSchool handles GET /siswa/{siswaID}/sekolah-terdekat requests.
func (h *Handler) HandleNearestSchool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	siswaID, err := intParam(chi.URLParam(r, "siswaID"), "siswaID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.NearestSchool(ctx, siswaID)
	if err != nil {
		h.logger.ErrorContext(ctx, "nearest school lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"siswa_id", siswaID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}
