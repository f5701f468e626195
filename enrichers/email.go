package enrichers

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// EmailToGravatarEnricher derives the Gravatar profile bound to an address.
// Pure computation: the hash and avatar URL are derived locally.
type EmailToGravatarEnricher struct {
	*enricher.Base
}

var emailToGravatarDesc = enricher.Descriptor{
	Name:       "email_to_gravatar",
	ClassName:  "EmailToGravatarEnricher",
	Category:   "Email",
	InputType:  "Email",
	OutputType: "Gravatar",
	Key:        "email",
	Doc:        "[GRAVATAR] Derives the Gravatar profile associated with an email address.",
	Icon:       "email",
}

// NewEmailToGravatarEnricher builds a configured email_to_gravatar instance.
func NewEmailToGravatarEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, emailToGravatarDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &EmailToGravatarEnricher{Base: base}, nil
}

func (e *EmailToGravatarEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, em := range inputs {
		address, _ := em.Get("email").(string)
		hash := GravatarHash(address)
		g, err := entity.Gravatar.New(map[string]any{
			"hash":       hash,
			"avatar_url": "https://www.gravatar.com/avatar/" + hash,
		})
		if err != nil {
			log.Warnf("[email_to_gravatar] invalid record for %s: %v", address, err)
			continue
		}
		results = append(results, g)
		e.LogGraphMessage("Gravatar hash for %s is %s", address, hash)
	}
	return results, nil
}

// Postprocess links each address to its Gravatar with HAS_GRAVATAR.
func (e *EmailToGravatarEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for i, g := range results {
		if i >= len(inputs) {
			break
		}
		if err := e.CreateNode(ctx, inputs[i]); err != nil {
			return nil, err
		}
		if err := e.CreateNode(ctx, g); err != nil {
			return nil, err
		}
		if err := e.CreateRelationship(ctx, inputs[i], g, "HAS_GRAVATAR"); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GravatarHash returns the md5 hex digest of the trimmed, lowercased address,
// per the Gravatar addressing convention.
func GravatarHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// EmailToDomainsEnricher finds domains registered with an email address
// through reverse WHOIS.
type EmailToDomainsEnricher struct {
	*enricher.Base
}

var emailToDomainsDesc = enricher.Descriptor{
	Name:       "email_to_domains",
	ClassName:  "EmailToDomainsEnricher",
	Category:   "Email",
	InputType:  "Email",
	OutputType: "Domain",
	Key:        "email",
	Params: []enricher.Param{
		{
			Name:        "WHOXY_API_KEY",
			Kind:        enricher.ParamVaultSecret,
			Description: "The Whoxy API key for reverse WHOIS lookups.",
			Required:    true,
		},
	},
	RequiredParams: true,
	Doc:            "[WHOXY] Finds domains registered with an email address through reverse WHOIS.",
	Icon:           "email",
}

// NewEmailToDomainsEnricher builds a configured email_to_domains instance.
func NewEmailToDomainsEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, emailToDomainsDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &EmailToDomainsEnricher{Base: base}, nil
}

func (e *EmailToDomainsEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(0)
	var results []*entity.Entity
	for _, em := range inputs {
		address, _ := em.Get("email").(string)
		var data struct {
			Status       int `json:"status"`
			SearchResult []struct {
				DomainName string `json:"domain_name"`
			} `json:"search_result"`
		}
		u := fmt.Sprintf("https://api.whoxy.com/?key=%s&reverse=whois&email=%s",
			url.QueryEscape(e.Secret("WHOXY_API_KEY")), url.QueryEscape(address))
		if err := getJSON(ctx, client, u, nil, &data); err != nil {
			log.Errorf("[email_to_domains] reverse WHOIS failed for %s: %v", address, err)
			continue
		}
		if data.Status != 1 {
			log.Warnf("[email_to_domains] no reverse WHOIS data for %s", address)
			continue
		}
		for _, rec := range data.SearchResult {
			name := strings.ToLower(strings.TrimSpace(rec.DomainName))
			if name == "" {
				continue
			}
			d, err := entity.Domain.New(map[string]any{"domain": name, "root": rootOf(name)})
			if err != nil {
				log.Warnf("[email_to_domains] invalid domain %q: %v", name, err)
				continue
			}
			results = append(results, d)
		}
		e.LogGraphMessage("Found %d domains registered with %s", len(data.SearchResult), address)
	}
	return results, nil
}

// Postprocess links each address to its registered domains with REGISTERED.
func (e *EmailToDomainsEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, em := range inputs {
		if err := e.CreateNode(ctx, em); err != nil {
			return nil, err
		}
	}
	for _, d := range results {
		if err := e.CreateNode(ctx, d); err != nil {
			return nil, err
		}
		for _, em := range inputs {
			if err := e.CreateRelationship(ctx, em, d, "REGISTERED"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}
