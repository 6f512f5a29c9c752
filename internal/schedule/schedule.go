// Package schedule resolves the active registration window from the period
// service. The registration core consumes the window as an input fact; window
// enforcement lives in the HTTP middleware, not in the pipeline.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	derrors "zonasi/pkg/domain-errors"
	"zonasi/pkg/platform/sentinel"
)

// Window is one schedule stage of a registration period.
type Window struct {
	JadwalID       int       `json:"jadwal_id"`
	PeriodeJalurID int       `json:"periode_jalur_id"`
	TahapanNama    string    `json:"tahapan_nama"`
	WaktuMulai     time.Time `json:"waktu_mulai"`
	WaktuSelesai   time.Time `json:"waktu_selesai"`
	IsClosed       int       `json:"is_closed"`
}

// Client fetches the schedule stages for a period track.
type Client interface {
	Jadwal(ctx context.Context, periodeJalurID int) ([]Window, error)
}

// TokenSource supplies the service token for schedule requests.
type TokenSource interface {
	ServiceToken() (string, error)
}

type jadwalEnvelope struct {
	Data []Window `json:"data"`
}

// HTTPClient talks to the period service.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

func NewHTTPClient(baseURL string, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Jadwal(ctx context.Context, periodeJalurID int) ([]Window, error) {
	token, err := c.tokens.ServiceToken()
	if err != nil {
		return nil, fmt.Errorf("issue service token: %w", err)
	}

	url := fmt.Sprintf("%s/jadwal/%d", c.baseURL, periodeJalurID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jadwal request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("period service request: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("period service status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var envelope jadwalEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode jadwal response: %w: %w", sentinel.ErrUnavailable, err)
	}
	return envelope.Data, nil
}

// ActiveWindow selects the open "pendaftaran" stage whose time range contains
// now. Absence of such a stage means registration is closed.
func ActiveWindow(windows []Window, now time.Time) (Window, error) {
	for _, w := range windows {
		if !strings.EqualFold(w.TahapanNama, "pendaftaran") || w.IsClosed == 1 {
			continue
		}
		if now.Before(w.WaktuMulai) || now.After(w.WaktuSelesai) {
			continue
		}
		return w, nil
	}
	return Window{}, derrors.New(derrors.CodeNotFound, "no registration window is currently open")
}
