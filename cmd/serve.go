package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/matcher"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

var (
	servePort         int
	serveCatalogFiles []string
)

type matchRequest struct {
	Description  string `json:"description"`
	EAN          string `json:"ean,omitempty"`
	Registration string `json:"registration,omitempty"`
	Issuer       string `json:"issuer,omitempty"`
	EmissionDate string `json:"emission_date,omitempty"`
}

type priceResponse struct {
	PriceID string `json:"price_id"`
	Ceiling string `json:"ceiling"`
	CAP     bool   `json:"cap"`
	ICMS0   bool   `json:"icms0"`
}

type matchResponse struct {
	Matched    bool                    `json:"matched"`
	Provenance model.MatchProvenance   `json:"provenance,omitempty"`
	Score      float64                 `json:"score,omitempty"`
	Product    *model.CanonicalProduct `json:"product,omitempty"`
	Price      *priceResponse          `json:"price,omitempty"`
}

// lookupService holds the in-memory catalog state the handlers share.
type lookupService struct {
	cascade  *matcher.Cascade
	resolver *vigency.Resolver
	byID     map[string]*model.CanonicalProduct
}

func (s *lookupService) match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Description == "" {
		http.Error(w, `{"error":"description is required"}`, http.StatusBadRequest)
		return
	}

	var emission time.Time
	if req.EmissionDate != "" {
		t, err := time.Parse("2006-01-02", req.EmissionDate)
		if err != nil {
			http.Error(w, `{"error":"emission_date must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		emission = t
	}

	li := &model.InvoiceLineItem{
		Description:  req.Description,
		EAN:          req.EAN,
		Registration: req.Registration,
		Issuer:       req.Issuer,
		EmissionDate: emission,
	}
	if _, err := s.cascade.Run(r.Context(), []*model.InvoiceLineItem{li}); err != nil {
		zap.L().Error("lookup cascade failed", zap.Error(err))
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	resp := matchResponse{}
	if li.Resolved() && li.Provenance != model.ProvenanceFiltered {
		resp.Matched = true
		resp.Provenance = li.Provenance
		resp.Score = li.MatchScore
		resp.Product = s.byID[li.ProductID]
		if !emission.IsZero() {
			if rp, ok := s.resolver.Resolve(li.Candidates, emission); ok {
				resp.Price = &priceResponse{
					PriceID: rp.PriceID,
					Ceiling: rp.Ceiling.StringFixed(2),
					CAP:     rp.CAP,
					ICMS0:   rp.ICMS0,
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// drainOnSignal shuts the server down once ctx is canceled. The
// shutdown gets its own deadline: the signal context is already dead,
// and passing it along would abort in-flight requests instead of
// draining them.
func drainOnSignal(ctx context.Context, srv *http.Server, timeout time.Duration) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	srv.Shutdown(shutCtx) //nolint:errcheck
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ad-hoc description lookups over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		norm := normalize.NewNormalizer(nil)
		cat, err := loadCatalog(ctx, norm, serveCatalogFiles)
		if err != nil {
			return err
		}
		cascade, _, err := buildCascade(norm, cat.products)
		if err != nil {
			return err
		}

		byID := make(map[string]*model.CanonicalProduct, len(cat.products))
		for i := range cat.products {
			byID[cat.products[i].ID] = &cat.products[i]
		}
		svc := &lookupService{
			cascade:  cascade,
			resolver: vigency.NewResolver(vigency.NewConsolidator().Consolidate(cat.snapshots)),
			byID:     byID,
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
		})
		r.Post("/v1/match", svc.match)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go drainOnSignal(ctx, srv, 10*time.Second)

		zap.L().Info("starting server", zap.Int("port", port), zap.Int("products", len(cat.products)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&serveCatalogFiles, "catalog", nil, "CMED snapshot files (xlsx, csv, or zip)")
	serveCmd.MarkFlagRequired("catalog") //nolint:errcheck
	rootCmd.AddCommand(serveCmd)
}
