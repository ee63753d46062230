package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/catalog"
	"github.com/vigiapreco/cmed-cli/internal/matcher"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/store"
	"github.com/vigiapreco/cmed-cli/pkg/anthropic"
)

// openStore opens the configured persistence backend and runs
// migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadedCatalog bundles everything derived from the snapshot files.
type loadedCatalog struct {
	snapshots []model.PriceSnapshot
	products  []model.CanonicalProduct
	hash      string
}

// loadCatalog reads every snapshot file, builds the canonical product
// set, and computes the content hash that identifies this catalog
// version.
func loadCatalog(ctx context.Context, norm *normalize.Normalizer, paths []string) (*loadedCatalog, error) {
	if len(paths) == 0 {
		return nil, eris.New("cmed: no catalog files given")
	}

	loader := catalog.NewLoader(cfg.Catalog)
	var snaps []model.PriceSnapshot
	h := sha256.New()
	for _, path := range paths {
		s, err := loader.LoadSnapshots(ctx, path)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, s...)

		fileHash, err := catalog.FileSHA256(path)
		if err != nil {
			return nil, err
		}
		h.Write([]byte(fileHash))
	}

	products := catalog.BuildProducts(snaps, norm)
	zap.L().Info("catalog loaded",
		zap.Int("snapshots", len(snaps)),
		zap.Int("products", len(products)))

	return &loadedCatalog{
		snapshots: snaps,
		products:  products,
		hash:      hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// buildCascade wires the match cascade over a loaded catalog. The AI
// stage is enabled only when an API key is configured.
func buildCascade(norm *normalize.Normalizer, products []model.CanonicalProduct) (*matcher.Cascade, *matcher.CandidateIndex, error) {
	ix := matcher.NewCandidateIndex(products, norm)
	scorer := matcher.NewScorer(cfg.Matcher, ix, norm)

	manual := matcher.DefaultManualTable()
	if cfg.Manual.TablePath != "" {
		t, err := matcher.LoadManualTable(cfg.Manual.TablePath)
		if err != nil {
			return nil, nil, err
		}
		manual = t
	}

	var extractor matcher.AttributeExtractor
	if cfg.Anthropic.Key != "" {
		client := anthropic.NewClient(cfg.Anthropic.Key)
		extractor = attributeExtractor{ex: anthropic.NewExtractor(client, anthropic.ExtractorConfig{
			Model:          cfg.Anthropic.Model,
			MaxTokens:      cfg.Anthropic.MaxTokens,
			RequestsPerSec: cfg.Anthropic.RequestsPerSec,
		})}
	}

	return matcher.NewCascade(cfg.Cascade, ix, scorer, norm, manual, extractor), ix, nil
}

// attributeExtractor adapts the API extractor to the cascade's
// collaborator interface.
type attributeExtractor struct {
	ex *anthropic.Extractor
}

func (a attributeExtractor) ExtractAttributes(ctx context.Context, description string) (matcher.ExtractedAttributes, error) {
	attrs, err := a.ex.Extract(ctx, description)
	if err != nil {
		return matcher.ExtractedAttributes{}, err
	}
	return matcher.ExtractedAttributes{
		Name: attrs.Name,
		Lab:  attrs.Lab,
		Quantities: model.Quantities{
			UnitCount: attrs.Units,
			MG:        attrs.MG,
			ML:        attrs.ML,
			UI:        attrs.UI,
		},
	}, nil
}
