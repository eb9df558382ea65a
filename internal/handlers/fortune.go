package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/platform/httpx"
	"github.com/hanko-field/fortune/internal/platform/observability"
	"github.com/hanko-field/fortune/internal/services"
)

const (
	maxNameRunes       = 64
	maxCompareSpanDays = 366
)

// FortuneHandlers exposes the name and birth-date reading endpoints.
type FortuneHandlers struct {
	fortune            services.FortuneService
	compareConcurrency int
}

// FortuneHandlerOption customises FortuneHandlers.
type FortuneHandlerOption func(*FortuneHandlers)

// WithCompareConcurrency bounds the parallelism of range comparisons.
func WithCompareConcurrency(n int) FortuneHandlerOption {
	return func(h *FortuneHandlers) {
		if n > 0 {
			h.compareConcurrency = n
		}
	}
}

// NewFortuneHandlers constructs the reading handlers.
func NewFortuneHandlers(fortune services.FortuneService, opts ...FortuneHandlerOption) *FortuneHandlers {
	h := &FortuneHandlers{fortune: fortune, compareConcurrency: 4}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the public reading endpoints.
func (h *FortuneHandlers) Routes(r chi.Router) {
	r.Post("/name-strokes", h.nameStrokes)
	r.Post("/five-grades", h.fiveGrades)
	r.Get("/six-star", h.sixStar)
}

// InternalRoutes wires the dataset reconciliation endpoints.
func (h *FortuneHandlers) InternalRoutes(r chi.Router) {
	r.Get("/six-star/compare", h.compareSixStar)
	r.Get("/six-star/compare-range", h.compareSixStarRange)
}

type nameStrokesRequest struct {
	Text string `json:"text"`
}

type nameStrokesResponse struct {
	Text      string                 `json:"text"`
	Strokes   int                    `json:"strokes"`
	Breakdown []services.CharStrokes `json:"breakdown"`
}

func (h *FortuneHandlers) nameStrokes(w http.ResponseWriter, r *http.Request) {
	var req nameStrokesRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := validateName("text", req.Text); err != nil {
		writeNameError(r.Context(), w, err)
		return
	}

	breakdown := h.fortune.NameStrokeBreakdown(req.Text)
	if breakdown == nil {
		breakdown = []services.CharStrokes{}
	}
	total := 0
	for _, c := range breakdown {
		total += c.Strokes
	}
	httpx.WriteJSON(w, http.StatusOK, nameStrokesResponse{Text: req.Text, Strokes: total, Breakdown: breakdown})
}

type fiveGradesRequest struct {
	Surname   string `json:"surname"`
	GivenName string `json:"givenName"`
}

func (h *FortuneHandlers) fiveGrades(w http.ResponseWriter, r *http.Request) {
	var req fiveGradesRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if err := validateName("surname", req.Surname); err != nil {
		writeNameError(r.Context(), w, err)
		return
	}
	if err := validateName("givenName", req.GivenName); err != nil {
		writeNameError(r.Context(), w, err)
		return
	}

	observability.FromContext(r.Context()).Debug("five grades requested",
		observability.NameField("surname", req.Surname),
		observability.NameField("given_name", req.GivenName),
	)
	httpx.WriteJSON(w, http.StatusOK, h.fortune.CalculateFiveGrades(req.Surname, req.GivenName))
}

func (h *FortuneHandlers) sixStar(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	result, err := h.fortune.ResolveSixStar(r.Context(), date)
	if err != nil {
		writeFortuneError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *FortuneHandlers) compareSixStar(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r, "date")
	if !ok {
		return
	}
	comparison, err := h.fortune.CompareSixStar(r.Context(), date)
	if err != nil {
		writeFortuneError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, comparison)
}

type compareRangeResponse struct {
	From        domain.BirthDate           `json:"from"`
	To          domain.BirthDate           `json:"to"`
	Days        int                        `json:"days"`
	Mismatches  int                        `json:"mismatches"`
	Missing     int                        `json:"missing"`
	Comparisons []domain.SixStarComparison `json:"comparisons"`
}

func (h *FortuneHandlers) compareSixStarRange(w http.ResponseWriter, r *http.Request) {
	from, ok := dateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateParam(w, r, "to")
	if !ok {
		return
	}
	if to.Before(from) {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidRequest, "to must not precede from", http.StatusBadRequest))
		return
	}
	if span := int(to.Time().Sub(from.Time()).Hours()/24) + 1; span > maxCompareSpanDays {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidRequest,
			fmt.Sprintf("range spans %d days; at most %d allowed", span, maxCompareSpanDays), http.StatusBadRequest))
		return
	}

	comparisons, err := h.fortune.CompareSixStarRange(r.Context(), from, to, h.compareConcurrency)
	if err != nil {
		writeFortuneError(r.Context(), w, err)
		return
	}
	resp := compareRangeResponse{From: from, To: to, Days: len(comparisons), Comparisons: comparisons}
	for _, c := range comparisons {
		switch {
		case c.Dataset == nil:
			resp.Missing++
		case !c.Match:
			resp.Mismatches++
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type nameError struct {
	field  string
	reason string
}

func (e *nameError) Error() string {
	return fmt.Sprintf("%s %s", e.field, e.reason)
}

// validateName bounds name inputs; empty names are valid and resolve to zero strokes.
func validateName(field, value string) error {
	if !utf8.ValidString(value) {
		return &nameError{field: field, reason: "must be valid UTF-8"}
	}
	if n := utf8.RuneCountInString(value); n > maxNameRunes {
		return &nameError{field: field, reason: fmt.Sprintf("must be at most %d characters", maxNameRunes)}
	}
	return nil
}

func writeNameError(ctx context.Context, w http.ResponseWriter, err error) {
	var ne *nameError
	if errors.As(err, &ne) {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidName, err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"field": ne.field}))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), http.StatusBadRequest))
}

func dateParam(w http.ResponseWriter, r *http.Request, name string) (domain.BirthDate, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidRequest, fmt.Sprintf("%s query parameter is required", name), http.StatusBadRequest))
		return domain.BirthDate{}, false
	}
	date, err := domain.ParseBirthDate(raw)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInvalidDate, err.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"field": name}))
		return domain.BirthDate{}, false
	}
	return date, true
}

func writeFortuneError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case services.IsInvalidDate(err):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidDate, err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrFortuneUnavailable), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "fortune service unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		observability.FromContext(ctx).Error("fortune request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInternal, "internal server error", http.StatusInternalServerError))
	}
}
