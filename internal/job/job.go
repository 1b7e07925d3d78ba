// Package job assembles and submits the extraction job request.
package job

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
	"github.com/jonjones-gis/lidar-picker/internal/ranking"
)

// Precondition failures, reported in this order and without any network
// round-trip.
var (
	ErrNoAOI       = errors.New("no area of interest: upload a shapefile first")
	ErrNoSelection = errors.New("no datasets selected")
	ErrNoCRS       = errors.New("output coordinate system is required")
	ErrInFlight    = errors.New("a submission is already in flight")
)

var bareCode = regexp.MustCompile(`^[0-9]+$`)

// NormalizeCRS trims, uppercases, and prefixes a bare numeric code with
// EPSG:. Empty input after trimming is an error.
func NormalizeCRS(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", ErrNoCRS
	}
	if bareCode.MatchString(s) {
		s = "EPSG:" + s
	}
	return s, nil
}

// Request is immutable once sent. It marshals to the positional payload
// the job endpoint expects: {"data":[aoi, ranked_ids, crs, stitch]}.
type Request struct {
	AOI       *geojson.FeatureCollection
	Datasets  []string
	OutputCRS string
	Stitch    bool
}

func (r Request) MarshalJSON() ([]byte, error) {
	aoi, err := r.AOI.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal aoi: %w", err)
	}
	ids := r.Datasets
	if ids == nil {
		ids = []string{}
	}
	payload := struct {
		Data [4]any `json:"data"`
	}{Data: [4]any{json.RawMessage(aoi), ids, r.OutputCRS, r.Stitch}}
	return json.Marshal(payload)
}

// Outcome is the handled job-endpoint response. Ready means the endpoint
// returned a follow-up location to navigate to; otherwise Message carries
// the acknowledgement text.
type Outcome struct {
	Ready       bool
	DownloadURL string
	Message     string
}

// Input is everything the builder needs for one submission attempt.
type Input struct {
	AOI      *geojson.FeatureCollection
	Selected []ranking.Item // in selection order
	RawCRS   string
	Stitch   bool
	Ranker   ranking.Ranker // nil degrades to selection order
}

type Builder struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	inFlight atomic.Bool
}

func NewBuilder(logger *slog.Logger, client *http.Client, endpoint string) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, client: client, endpoint: endpoint}
}

// Submit checks the preconditions in order, obtains the rank order, sends
// the request, and interprets the response. The in-flight guard is the
// submit affordance: it is released on every exit path, so the UI is
// usable again after success, failure, and cancellation alike.
func (b *Builder) Submit(ctx context.Context, in Input) (Outcome, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrInFlight
	}
	defer b.inFlight.Store(false)

	if in.AOI == nil || len(in.AOI.Features) == 0 {
		observability.IncJobSubmission("validation")
		return Outcome{}, ErrNoAOI
	}
	if len(in.Selected) == 0 {
		observability.IncJobSubmission("validation")
		return Outcome{}, ErrNoSelection
	}
	crs, err := NormalizeCRS(in.RawCRS)
	if err != nil {
		observability.IncJobSubmission("validation")
		return Outcome{}, err
	}

	order, err := ranking.Resolve(ctx, in.Ranker, in.Selected)
	if err != nil {
		if errors.Is(err, ranking.ErrCancelled) {
			observability.IncJobSubmission("cancelled")
		} else {
			observability.IncJobSubmission("rank_error")
		}
		return Outcome{}, err
	}

	req := Request{AOI: in.AOI, Datasets: order, OutputCRS: crs, Stitch: in.Stitch}
	out, err := b.send(ctx, req)
	if err != nil {
		observability.IncJobSubmission("transport_error")
		return Outcome{}, err
	}
	observability.IncJobSubmission("accepted")
	b.logger.Info("job submitted",
		"datasets", len(order),
		"crs", crs,
		"stitch", in.Stitch,
		"ready", out.Ready)
	return out, nil
}

// InFlight reports whether a submission is currently outstanding.
func (b *Builder) InFlight() bool { return b.inFlight.Load() }

func (b *Builder) send(ctx context.Context, r Request) (Outcome, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Outcome{}, fmt.Errorf("build job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build job request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("job endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ObserveUpstreamLatency("job_endpoint", time.Since(start).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Outcome{}, fmt.Errorf("read job response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = fmt.Sprintf("job submission failed (status %d)", resp.StatusCode)
		}
		return Outcome{}, errors.New(msg)
	}

	var ack struct {
		DownloadURL string `json:"download_url"`
		Message     string `json:"message"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ack); err != nil {
			return Outcome{}, fmt.Errorf("parse job response: %w", err)
		}
	}

	if ack.DownloadURL != "" {
		return Outcome{Ready: true, DownloadURL: ack.DownloadURL, Message: ack.Message}, nil
	}
	msg := ack.Message
	if msg == "" {
		msg = "Job submitted; processing has started."
	}
	return Outcome{Message: msg}, nil
}
