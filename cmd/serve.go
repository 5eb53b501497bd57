package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-sync/internal/pipeline"
	"github.com/sells-group/contact-sync/internal/resilience"
)

// maxBodyBytes caps webhook request bodies.
const maxBodyBytes = 1 << 20

var servePort int

// contactService is the part of the pipeline the webhooks drive.
type contactService interface {
	ProcessContact(ctx context.Context, contactID, phone string, opts ...pipeline.ProcessOption) *pipeline.ContactResult
	UpdateGrade(ctx context.Context, contactID, grade string) error
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for contact updates and grades",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Pipeline, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		checker, err := env.Checker(ctx)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		if checker != nil {
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the webhook routes. svc may be nil, in which case
// well-formed requests fail with a configuration error.
func buildRouter(svc contactService, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "contact-sync webhook server is running\n")
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/webhook/update-contact", handleUpdateContact(svc))
	r.Post("/receive-grade", handleReceiveGrade(svc))

	return r
}

type updateContactRequest struct {
	ContactID   string `json:"contact_id"`
	PhoneNumber string `json:"phone_number"`
}

type updateContactResponse struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handleUpdateContact(svc contactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateContactRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, updateContactResponse{Error: "invalid JSON body"})
			return
		}
		req.ContactID = strings.TrimSpace(req.ContactID)
		req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
		if req.ContactID == "" || req.PhoneNumber == "" {
			writeJSON(w, http.StatusBadRequest, updateContactResponse{Error: "contact_id and phone_number are required"})
			return
		}
		if svc == nil {
			writeJSON(w, http.StatusInternalServerError, updateContactResponse{Error: resilience.Configuration("pipeline").Error()})
			return
		}

		res := svc.ProcessContact(r.Context(), req.ContactID, req.PhoneNumber)
		log := zap.L().With(zap.String("contact_id", req.ContactID), zap.String("status", string(res.Status)))

		switch res.Status {
		case pipeline.StatusSuccess, pipeline.StatusSkipped:
			log.Info("webhook: contact processed")
			writeJSON(w, http.StatusOK, updateContactResponse{
				Success: true,
				Skipped: res.Skipped(),
				Message: res.Message,
			})
		default:
			log.Warn("webhook: contact failed", zap.Error(res.Err))
			writeJSON(w, statusFor(res.Err), updateContactResponse{Error: res.Message})
		}
	}
}

func handleReceiveGrade(svc contactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "could not read body", "received": nil})
			return
		}

		var body map[string]any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body", "received": string(raw)})
			return
		}

		id := stringField(body, "unique_id")
		if id == "" {
			id = stringField(body, "record_id")
		}
		grade := stringField(body, "grade")
		if id == "" || grade == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    "unique_id (or record_id) and grade are required",
				"received": body,
			})
			return
		}
		if svc == nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": resilience.Configuration("pipeline").Error()})
			return
		}

		if err := svc.UpdateGrade(r.Context(), id, grade); err != nil {
			zap.L().Warn("webhook: grade update failed", zap.String("contact_id", id), zap.Error(err))
			writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
			return
		}
		zap.L().Info("webhook: grade updated", zap.String("contact_id", id), zap.String("grade", grade))
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "updated": id})
	}
}

// stringField reads key as a trimmed string. Numeric ids are accepted
// verbatim, so body must be decoded with UseNumber.
func stringField(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// statusFor maps a pipeline error to an HTTP status: client faults are 400,
// everything else 500.
func statusFor(err error) int {
	if resilience.KindOf(err) == resilience.KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
