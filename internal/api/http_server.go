package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"handyhub/internal/config"
	"handyhub/internal/domain"
	"handyhub/internal/metrics"
	"handyhub/internal/models"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking, OTP, feedback and listing operations over
// HTTP/JSON.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	otp      domain.OTPService
	listings domain.ListingService
	auth     *Auth
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, authCfg config.AuthConfig, bookings domain.BookingService, otp domain.OTPService, listings domain.ListingService, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		otp:      otp,
		listings: listings,
		auth:     NewAuth(authCfg),
		log:      logger.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /booking", srv.handleCreateBooking)
	mux.HandleFunc("GET /booking", srv.handleListBookings)
	mux.HandleFunc("GET /booking/{id}", srv.handleGetBooking)
	mux.HandleFunc("PUT /booking/{id}/status", srv.handleSetStatus)
	mux.HandleFunc("PUT /booking/{id}/cancel", srv.handleAdminCancel)
	mux.HandleFunc("POST /booking/{id}/otp", srv.handleIssueOTP)
	mux.HandleFunc("POST /booking/{id}/otp/verify", srv.handleVerifyOTP)
	mux.HandleFunc("POST /booking/{id}/feedback", srv.handleFeedback)
	mux.HandleFunc("GET /feedback", srv.handleProviderFeedback)

	mux.HandleFunc("POST /listing", srv.handleCreateListing)
	mux.HandleFunc("GET /listing", srv.handleActiveListings)
	mux.HandleFunc("GET /listing/mine", srv.handleMyListings)
	mux.HandleFunc("PUT /listing/{id}/approval", srv.handleListingApproval)

	mux.HandleFunc("GET /admin/stats", srv.handleAdminStats)
	mux.HandleFunc("GET /admin/bookings/export", srv.handleExportBookings)

	limiter := newRateLimiter(cfg.RateLimit)
	protected := srv.auth.Wrap(limiter.Wrap(mux))

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", srv.handleHealthz)
	root.Handle("/", protected)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsCustomer() {
		writeError(w, http.StatusForbidden, "only customers can create bookings")
		return
	}

	var req models.Booking
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), identity, &req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("booking_create")
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	bookings, err := s.bookings.BookingsFor(r.Context(), identity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("booking_list")
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !isParty(identity, booking) {
		// Чужая бронь неотличима от несуществующей
		writeError(w, http.StatusNotFound, domain.ErrBookingNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Status {
	case models.StatusConfirm, models.StatusRejected, models.StatusCancel, models.StatusCompleted:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}

	booking, err := s.bookings.SetStatus(r.Context(), identity, r.PathValue("id"), req.Status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("booking_status")
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	booking, err := s.bookings.CancelByAdmin(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("booking_admin_cancel")
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleIssueOTP(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !isParty(identity, booking) {
		writeError(w, http.StatusNotFound, domain.ErrBookingNotFound.Error())
		return
	}

	if _, err := s.otp.Issue(r.Context(), booking.ID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("otp_issue")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	var req struct {
		OTP string `json:"otp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !isParty(identity, booking) {
		writeError(w, http.StatusNotFound, domain.ErrBookingNotFound.Error())
		return
	}

	if _, err := s.otp.Verify(r.Context(), booking.ID, req.OTP); err != nil {
		switch {
		case errors.Is(err, domain.ErrNoChallenge),
			errors.Is(err, domain.ErrOTPExpired),
			errors.Is(err, domain.ErrOTPMismatch):
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		default:
			s.writeDomainError(w, err)
		}
		return
	}

	metrics.IncHTTP("otp_verify")
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)

	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.AttachFeedback(r.Context(), identity, r.PathValue("id"), req.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("feedback")
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleProviderFeedback(w http.ResponseWriter, r *http.Request) {
	providerUsername := r.URL.Query().Get("provider")
	if providerUsername == "" {
		identity := mustIdentity(r)
		if !identity.IsProvider() {
			writeError(w, http.StatusBadRequest, "provider is required")
			return
		}
		providerUsername = identity.Username
	}

	bookings, err := s.bookings.ProviderFeedback(r.Context(), providerUsername)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"feedback": bookings})
}

func (s *HTTPServer) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsProvider() {
		writeError(w, http.StatusForbidden, "provider only")
		return
	}

	var req models.Listing
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	listing, err := s.listings.CreateListing(r.Context(), identity, &req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("listing_create")
	writeJSON(w, http.StatusCreated, listing)
}

func (s *HTTPServer) handleActiveListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.listings.ActiveListings(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *HTTPServer) handleMyListings(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsProvider() {
		writeError(w, http.StatusForbidden, "provider only")
		return
	}

	listings, err := s.listings.ProviderListings(r.Context(), identity.Username)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *HTTPServer) handleListingApproval(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var req struct {
		Approval string `json:"approval"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	listing, err := s.listings.SetApproval(r.Context(), r.PathValue("id"), req.Approval)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	metrics.IncHTTP("listing_approval")
	writeJSON(w, http.StatusOK, listing)
}

func (s *HTTPServer) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	identity := mustIdentity(r)
	if !identity.IsAdmin() {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	pending, err := s.bookings.CountByStatus(r.Context(), models.StatusPending)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pendingBookings": pending})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	var terr *domain.InvalidTransitionError
	var nerr *domain.NotificationError

	switch {
	case errors.Is(err, domain.ErrBookingNotFound), errors.Is(err, domain.ErrListingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr), errors.As(err, &terr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadySubmitted), errors.Is(err, domain.ErrFeedbackNotReady):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrResendThrottled):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &nerr):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isParty(identity models.Identity, booking *models.Booking) bool {
	return identity.IsAdmin() ||
		identity.Username == booking.CustomerUsername ||
		identity.Username == booking.ProviderUsername
}

// mustIdentity is only called behind the auth middleware.
func mustIdentity(r *http.Request) models.Identity {
	identity, _ := IdentityFrom(r.Context())
	return identity
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
