package enrichers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// WhoisEnricher fetches the registration record of a domain over RDAP.
type WhoisEnricher struct {
	*enricher.Base
}

var whoisDesc = enricher.Descriptor{
	Name:       "domain_to_whois",
	ClassName:  "WhoisEnricher",
	Category:   "Domain",
	InputType:  "Domain",
	OutputType: "Whois",
	Key:        "domain",
	Params: []enricher.Param{
		{Name: "timeout", Kind: enricher.ParamNumber, Description: "Request timeout in seconds.", Default: 10},
	},
	Doc:  "[RDAP] Fetches the WHOIS registration record of a domain.",
	Icon: "domain",
}

// NewWhoisEnricher builds a configured domain_to_whois instance.
func NewWhoisEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, whoisDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &WhoisEnricher{Base: base}, nil
}

func (e *WhoisEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(paramTimeout(e.Param("timeout")))
	var results []*entity.Entity
	for _, d := range inputs {
		domain, _ := d.Get("domain").(string)
		var data struct {
			Events []struct {
				Action string `json:"eventAction"`
				Date   string `json:"eventDate"`
			} `json:"events"`
			Entities []struct {
				Roles      []string `json:"roles"`
				VcardArray []any    `json:"vcardArray"`
			} `json:"entities"`
		}
		u := fmt.Sprintf("https://rdap.org/domain/%s", url.PathEscape(domain))
		if err := getJSON(ctx, client, u, nil, &data); err != nil {
			log.Errorf("[domain_to_whois] lookup failed for %s: %v", domain, err)
			continue
		}
		record := map[string]any{"domain": domain}
		for _, ev := range data.Events {
			switch ev.Action {
			case "registration":
				record["creation_date"] = ev.Date
			case "expiration":
				record["expiration_date"] = ev.Date
			}
		}
		if registrar := registrarName(data.Entities); registrar != "" {
			record["registrar"] = registrar
		}
		w, err := entity.Whois.New(record)
		if err != nil {
			log.Warnf("[domain_to_whois] invalid record for %s: %v", domain, err)
			continue
		}
		results = append(results, w)
		e.LogGraphMessage("Fetched WHOIS record for %s", domain)
	}
	return results, nil
}

// Postprocess links each domain to its record with HAS_WHOIS.
func (e *WhoisEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for i, w := range results {
		if i >= len(inputs) {
			break
		}
		if err := e.CreateNode(ctx, inputs[i]); err != nil {
			return nil, err
		}
		if err := e.CreateNode(ctx, w); err != nil {
			return nil, err
		}
		if err := e.CreateRelationship(ctx, inputs[i], w, "HAS_WHOIS"); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// registrarName digs the registrar's display name out of the RDAP entity
// list. The vCard format nests [name, params, type, value] arrays.
func registrarName(entities []struct {
	Roles      []string `json:"roles"`
	VcardArray []any    `json:"vcardArray"`
}) string {
	for _, ent := range entities {
		if !hasRole(ent.Roles, "registrar") {
			continue
		}
		if len(ent.VcardArray) < 2 {
			continue
		}
		props, ok := ent.VcardArray[1].([]any)
		if !ok {
			continue
		}
		for _, p := range props {
			fields, ok := p.([]any)
			if !ok || len(fields) < 4 {
				continue
			}
			if name, _ := fields[0].(string); name != "fn" {
				continue
			}
			if value, ok := fields[3].(string); ok && value != "" {
				return value
			}
		}
	}
	return ""
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
