package enrichers

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// ReverseResolveEnricher maps an IP address back to its PTR domains.
type ReverseResolveEnricher struct {
	*enricher.Base
	resolver *net.Resolver
}

var reverseResolveDesc = enricher.Descriptor{
	Name:       "ip_to_domain",
	ClassName:  "ReverseResolveEnricher",
	Category:   "Ip",
	InputType:  "Ip",
	OutputType: "Domain",
	Key:        "address",
	Doc:        "Reverse-resolves an IP address to its domain names via PTR records.",
	Icon:       "ip",
}

// NewReverseResolveEnricher builds a configured ip_to_domain instance.
func NewReverseResolveEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, reverseResolveDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &ReverseResolveEnricher{Base: base, resolver: net.DefaultResolver}, nil
}

func (e *ReverseResolveEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, ip := range inputs {
		addr, _ := ip.Get("address").(string)
		names, err := e.resolver.LookupAddr(ctx, addr)
		if err != nil {
			log.Warnf("[ip_to_domain] reverse lookup failed for %s: %v", addr, err)
			continue
		}
		for _, name := range names {
			name = strings.TrimSuffix(strings.ToLower(name), ".")
			if name == "" {
				continue
			}
			d, err := entity.Domain.New(map[string]any{"domain": name, "root": rootOf(name)})
			if err != nil {
				log.Warnf("[ip_to_domain] invalid domain %q: %v", name, err)
				continue
			}
			results = append(results, d)
			e.LogGraphMessage("IP %s reverse-resolves to %s", addr, name)
		}
	}
	return results, nil
}

// Postprocess writes each address, its PTR domains, and the RESOLVES_TO edges.
func (e *ReverseResolveEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, ip := range inputs {
		if err := e.CreateNode(ctx, ip); err != nil {
			return nil, err
		}
	}
	for _, d := range results {
		if err := e.CreateNode(ctx, d); err != nil {
			return nil, err
		}
		for _, ip := range inputs {
			if err := e.CreateRelationship(ctx, ip, d, "RESOLVES_TO"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// IpToAsnEnricher finds the autonomous system announcing an address.
type IpToAsnEnricher struct {
	*enricher.Base
}

var ipToAsnDesc = enricher.Descriptor{
	Name:       "ip_to_asn",
	ClassName:  "IpToAsnEnricher",
	Category:   "Ip",
	InputType:  "Ip",
	OutputType: "ASN",
	Key:        "address",
	Params: []enricher.Param{
		{Name: "timeout", Kind: enricher.ParamNumber, Description: "Request timeout in seconds.", Default: 10},
	},
	Doc:  "[RIPESTAT] Finds the autonomous system announcing an IP address.",
	Icon: "ip",
}

// NewIpToAsnEnricher builds a configured ip_to_asn instance.
func NewIpToAsnEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, ipToAsnDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &IpToAsnEnricher{Base: base}, nil
}

func (e *IpToAsnEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(paramTimeout(e.Param("timeout")))
	var results []*entity.Entity
	for _, ip := range inputs {
		addr, _ := ip.Get("address").(string)
		var data struct {
			Data struct {
				ASNs []struct {
					ASN    int    `json:"asn"`
					Holder string `json:"holder"`
				} `json:"asns"`
			} `json:"data"`
		}
		u := fmt.Sprintf("https://stat.ripe.net/data/network-info/data.json?resource=%s", url.QueryEscape(addr))
		if err := getJSON(ctx, client, u, nil, &data); err != nil {
			log.Errorf("[ip_to_asn] lookup failed for %s: %v", addr, err)
			continue
		}
		for _, a := range data.Data.ASNs {
			asn, err := entity.ASN.New(map[string]any{
				"number":      a.ASN,
				"name":        a.Holder,
				"description": a.Holder,
			})
			if err != nil {
				log.Warnf("[ip_to_asn] invalid ASN record for %s: %v", addr, err)
				continue
			}
			results = append(results, asn)
			e.LogGraphMessage("IP %s belongs to AS%d (%s)", addr, a.ASN, a.Holder)
		}
	}
	return results, nil
}

// Postprocess links each address to its announcing AS with BELONGS_TO.
func (e *IpToAsnEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, ip := range inputs {
		if err := e.CreateNode(ctx, ip); err != nil {
			return nil, err
		}
	}
	for _, asn := range results {
		if err := e.CreateNode(ctx, asn); err != nil {
			return nil, err
		}
		for _, ip := range inputs {
			if err := e.CreateRelationship(ctx, ip, asn, "BELONGS_TO"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// IpToInfosEnricher geolocates an address.
type IpToInfosEnricher struct {
	*enricher.Base
}

var ipToInfosDesc = enricher.Descriptor{
	Name:       "ip_to_infos",
	ClassName:  "IpToInfosEnricher",
	Category:   "Ip",
	InputType:  "Ip",
	OutputType: "Ip",
	Key:        "address",
	Params: []enricher.Param{
		{Name: "timeout", Kind: enricher.ParamNumber, Description: "Request timeout in seconds.", Default: 10},
	},
	Doc:  "[IP-API] Geolocates an IP address and enriches it with country and city.",
	Icon: "ip",
}

// NewIpToInfosEnricher builds a configured ip_to_infos instance.
func NewIpToInfosEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, ipToInfosDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &IpToInfosEnricher{Base: base}, nil
}

func (e *IpToInfosEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(paramTimeout(e.Param("timeout")))
	var results []*entity.Entity
	for _, ip := range inputs {
		addr, _ := ip.Get("address").(string)
		var data struct {
			Status  string `json:"status"`
			Country string `json:"country"`
			City    string `json:"city"`
		}
		u := fmt.Sprintf("http://ip-api.com/json/%s", url.QueryEscape(addr))
		if err := getJSON(ctx, client, u, nil, &data); err != nil {
			log.Errorf("[ip_to_infos] lookup failed for %s: %v", addr, err)
			continue
		}
		if data.Status != "success" {
			log.Warnf("[ip_to_infos] no geolocation data for %s", addr)
			continue
		}
		enriched, err := entity.Ip.New(map[string]any{
			"address": addr,
			"country": data.Country,
			"city":    data.City,
		})
		if err != nil {
			log.Warnf("[ip_to_infos] invalid record for %s: %v", addr, err)
			continue
		}
		results = append(results, enriched)
		e.LogGraphMessage("IP %s is located in %s, %s", addr, data.City, data.Country)
	}
	return results, nil
}

// Postprocess re-upserts the enriched addresses; MERGE folds the new
// attributes into the existing nodes.
func (e *IpToInfosEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, ip := range results {
		if err := e.CreateNode(ctx, ip); err != nil {
			return nil, err
		}
	}
	return results, nil
}
