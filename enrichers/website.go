package enrichers

import (
	"context"
	"net/url"
	"strings"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// WebsiteToDomainEnricher extracts the hosting domain of a website URL.
// Pure computation, no network calls.
type WebsiteToDomainEnricher struct {
	*enricher.Base
}

var websiteToDomainDesc = enricher.Descriptor{
	Name:       "website_to_domain",
	ClassName:  "WebsiteToDomainEnricher",
	Category:   "Website",
	InputType:  "Website",
	OutputType: "Domain",
	Key:        "url",
	Doc:        "Extracts the domain a website is served from.",
	Icon:       "website",
}

// NewWebsiteToDomainEnricher builds a configured website_to_domain instance.
func NewWebsiteToDomainEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, websiteToDomainDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &WebsiteToDomainEnricher{Base: base}, nil
}

func (e *WebsiteToDomainEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, w := range inputs {
		raw, _ := w.Get("url").(string)
		host := hostOf(raw)
		if host == "" {
			log.Warnf("[website_to_domain] no host in URL %q", raw)
			continue
		}
		d, err := entity.Domain.New(map[string]any{"domain": host, "root": rootOf(host)})
		if err != nil {
			log.Warnf("[website_to_domain] invalid domain %q: %v", host, err)
			continue
		}
		results = append(results, d)
		e.LogGraphMessage("Website %s belongs to domain %s", raw, host)
	}
	return results, nil
}

// Postprocess links each website to its domain with BELONGS_TO_DOMAIN.
func (e *WebsiteToDomainEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for i, d := range results {
		if i >= len(inputs) {
			break
		}
		if err := e.CreateNode(ctx, inputs[i]); err != nil {
			return nil, err
		}
		if err := e.CreateNode(ctx, d); err != nil {
			return nil, err
		}
		if err := e.CreateRelationship(ctx, inputs[i], d, "BELONGS_TO_DOMAIN"); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// hostOf extracts the lowercase hostname from a URL, tolerating bare hosts
// without a scheme.
func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
