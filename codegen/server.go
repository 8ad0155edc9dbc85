package codegen

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/warp/loyalty-engine/loyalty"
)

// DefaultImageSize is the PNG edge length in pixels.
const DefaultImageSize = 256

// Server mints codes: a UUIDv5 hash rendered as a QR PNG.
type Server struct {
	Logger    *slog.Logger
	ImageSize int
	Now       func() time.Time
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Logger:    logger.With("component", "codegen"),
		ImageSize: DefaultImageSize,
		Now:       time.Now,
	}
}

// Routes returns the service router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/generate-qr", s.handleGenerate)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	return r
}

// Mint builds a fresh code. The hash is unique per call even for
// identical inputs: it folds in the time and a random UUID.
func (s *Server) Mint(accountID loyalty.AccountID, amount int64) (loyalty.Code, error) {
	seed := fmt.Sprintf("%d_%d_%s_%s",
		accountID, amount, s.Now().UTC().Format(time.RFC3339Nano), uuid.NewString())
	hash := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(seed)).String()

	png, err := qrcode.Encode(hash, qrcode.Low, s.ImageSize)
	if err != nil {
		return loyalty.Code{}, fmt.Errorf("render qr code: %w", err)
	}
	return loyalty.Code{Image: base64.StdEncoding.EncodeToString(png), Hash: hash}, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	code, err := s.Mint(loyalty.AccountID(req.UserID), req.Amount)
	if err != nil {
		s.Logger.Error("mint failed", "user_id", req.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate code"})
		return
	}

	s.Logger.Info("code minted", "user_id", req.UserID, "amount", req.Amount, "hash", code.Hash)
	writeJSON(w, http.StatusOK, generateResponse{Image: code.Image, Hash: code.Hash})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
