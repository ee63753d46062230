package matcher

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/quantity"
)

// ExtractedAttributes is the structured tuple an external extraction
// service returns for a raw description.
type ExtractedAttributes struct {
	Name       string
	Lab        string
	Quantities model.Quantities
}

// AttributeExtractor is the AI-assisted fallback collaborator. The
// cascade treats it as optional and best-effort: extraction errors skip
// the record, they never abort the batch.
type AttributeExtractor interface {
	ExtractAttributes(ctx context.Context, description string) (ExtractedAttributes, error)
}

// CascadeConfig tunes the cascade's parallel fuzzy stage.
type CascadeConfig struct {
	Workers int `mapstructure:"workers"`
}

// Cascade resolves invoice line items against the catalog in five
// ordered stages. Lower stages are higher confidence; a record resolved
// by stage N is never touched by stage N+1.
type Cascade struct {
	ix        *CandidateIndex
	scorer    *Scorer
	norm      *normalize.Normalizer
	manual    *ManualTable
	extractor AttributeExtractor
	workers   int
	log       *zap.Logger
}

// NewCascade wires the cascade. extractor may be nil, which disables
// the AI-assisted stage.
func NewCascade(cfg CascadeConfig, ix *CandidateIndex, scorer *Scorer, norm *normalize.Normalizer, manual *ManualTable, extractor AttributeExtractor) *Cascade {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if manual == nil {
		manual = DefaultManualTable()
	}
	return &Cascade{
		ix:        ix,
		scorer:    scorer,
		norm:      norm,
		manual:    manual,
		extractor: extractor,
		workers:   workers,
		log:       zap.L().With(zap.String("component", "matcher")),
	}
}

// Run executes all stages over the batch, mutating the items in place,
// and returns the aggregate counters. Per-record problems are recovered
// locally; only context cancellation aborts the run.
func (c *Cascade) Run(ctx context.Context, items []*model.InvoiceLineItem) (*model.RunStats, error) {
	c.prepare(items)

	c.stageExactKeys(items)
	c.stageUniquePresentation(items)
	if err := c.stageFuzzy(ctx, items); err != nil {
		return nil, err
	}
	c.stageManual(items)
	if err := c.stageAI(ctx, items); err != nil {
		return nil, err
	}

	stats := model.NewRunStats()
	for _, li := range items {
		stats.Record(li)
	}
	c.log.Info("cascade complete",
		zap.Int("total", stats.Total),
		zap.Int("matched", stats.Matched),
		zap.Int("filtered", stats.Filtered),
		zap.Int("unresolved", stats.Unresolved))
	return stats, nil
}

// prepare derives the cleaned text and numeric attributes every stage
// reads. A unit count that only comes from the extractor's default is
// dropped so it does not penalize candidates numerically.
func (c *Cascade) prepare(items []*model.InvoiceLineItem) {
	for _, li := range items {
		if li.CleanName == "" {
			li.CleanName = normalize.Clean(li.Description)
		}
		if li.CleanLab == "" {
			li.CleanLab = normalize.Clean(li.Issuer)
		}
		q, rule := quantity.Extract(li.CleanName)
		if rule == quantity.RuleNone {
			q.UnitCount = 0
		}
		li.Quantities = q
	}
}

// stageExactKeys joins on the normalized EAN slots and the registration
// number. The first key that hits wins and short-circuits the rest for
// that record.
func (c *Cascade) stageExactKeys(items []*model.InvoiceLineItem) {
	for _, li := range items {
		if li.Resolved() {
			continue
		}
		if ean, ok := normalize.EAN(li.EAN); ok {
			if p := c.ix.ByEAN1(ean); p != nil {
				li.Resolve(p.ID, []string{p.ID}, model.ProvenanceEAN1)
				continue
			}
			if p := c.ix.ByEAN2(ean); p != nil {
				li.Resolve(p.ID, []string{p.ID}, model.ProvenanceEAN2)
				continue
			}
			if p := c.ix.ByEAN3(ean); p != nil {
				li.Resolve(p.ID, []string{p.ID}, model.ProvenanceEAN3)
				continue
			}
		}
		if reg, ok := normalize.Registration(li.Registration); ok {
			if p := c.ix.ByRegistration(reg); p != nil {
				li.Resolve(p.ID, []string{p.ID}, model.ProvenanceReg)
			}
		}
	}
}

// stageUniquePresentation joins by cleaned product name when the
// catalog holds exactly one distinct presentation for that name, where
// ambiguity is structurally impossible.
func (c *Cascade) stageUniquePresentation(items []*model.InvoiceLineItem) {
	for _, li := range items {
		if li.Resolved() {
			continue
		}
		if p := c.ix.UniquePresentation(li.CleanName); p != nil {
			li.Resolve(p.ID, []string{p.ID}, model.ProvenanceUnique)
		}
	}
}

// queryKey identifies one deduplicated fuzzy workload entry.
type queryKey struct {
	name string
	lab  string
	q    model.Quantities
}

// stageFuzzy scores each distinct (name, lab, quantities) tuple once,
// in parallel over disjoint partitions, then broadcasts the result back
// to every record sharing the tuple. Partition order is preserved so
// re-runs are reproducible.
func (c *Cascade) stageFuzzy(ctx context.Context, items []*model.InvoiceLineItem) error {
	var keys []queryKey
	seen := make(map[queryKey]int)
	for _, li := range items {
		if li.Resolved() {
			continue
		}
		k := queryKey{name: li.CleanName, lab: li.CleanLab, q: li.Quantities}
		if _, ok := seen[k]; !ok {
			seen[k] = len(keys)
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	c.log.Info("fuzzy stage", zap.Int("unique_queries", len(keys)), zap.Int("workers", c.workers))

	results := make([]*Match, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	chunk := (len(keys) + c.workers - 1) / c.workers
	for start := 0; start < len(keys); start += chunk {
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		start, end := start, end
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				k := keys[i]
				m, ok := c.scorer.Best(Query{Name: k.name, Lab: k.lab, Quantities: k.q})
				if ok {
					results[i] = &m
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, li := range items {
		if li.Resolved() {
			continue
		}
		k := queryKey{name: li.CleanName, lab: li.CleanLab, q: li.Quantities}
		if m := results[seen[k]]; m != nil {
			li.MatchScore = m.Score
			li.Resolve(m.Product.ID, m.Candidates, model.ProvenanceFuzzy)
		}
	}
	return nil
}

// stageManual first drops clearly non-pharmaceutical lines, then
// applies the description rules and correction dictionary and joins the
// rewritten name against the catalog.
func (c *Cascade) stageManual(items []*model.InvoiceLineItem) {
	for _, li := range items {
		if li.Resolved() {
			continue
		}
		if c.manual.IsNonPharma(li.CleanName) {
			li.Provenance = model.ProvenanceFiltered
			continue
		}
		name := c.manual.RewriteName(li.CleanName, li.Description)
		if name == li.CleanName {
			continue
		}
		hits := c.ix.ByCleanName(normalize.Clean(name))
		if len(hits) == 0 {
			continue
		}
		ids := make([]string, len(hits))
		for i, p := range hits {
			ids[i] = p.ID
		}
		li.CleanName = normalize.Clean(name)
		li.Resolve(hits[0].ID, ids, model.ProvenanceManual)
	}
}

// stageAI asks the external extractor for structured attributes and
// re-enters the fuzzy scorer with them.
func (c *Cascade) stageAI(ctx context.Context, items []*model.InvoiceLineItem) error {
	if c.extractor == nil {
		return nil
	}
	for _, li := range items {
		if li.Resolved() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		attrs, err := c.extractor.ExtractAttributes(ctx, li.Description)
		if err != nil {
			c.log.Warn("attribute extraction failed", zap.Error(err))
			continue
		}
		q := Query{
			Name:       normalize.Clean(attrs.Name),
			Lab:        normalize.Clean(attrs.Lab),
			Quantities: attrs.Quantities,
		}
		m, ok := c.scorer.Best(q)
		if !ok {
			continue
		}
		li.MatchScore = m.Score
		li.Resolve(m.Product.ID, m.Candidates, model.ProvenanceAI)
	}
	return nil
}
