package enrichers

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// AsnToCidrsEnricher expands an autonomous system into its announced prefixes.
type AsnToCidrsEnricher struct {
	*enricher.Base
}

var asnToCidrsDesc = enricher.Descriptor{
	Name:       "asn_to_cidrs",
	ClassName:  "AsnToCidrsEnricher",
	Category:   "Infrastructure",
	InputType:  "ASN",
	OutputType: "CIDR",
	Key:        "number",
	Params: []enricher.Param{
		{Name: "timeout", Kind: enricher.ParamNumber, Description: "Request timeout in seconds.", Default: 10},
	},
	Doc:  "[RIPESTAT] Lists the CIDR prefixes announced by an autonomous system.",
	Icon: "network",
}

// NewAsnToCidrsEnricher builds a configured asn_to_cidrs instance.
func NewAsnToCidrsEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, asnToCidrsDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &AsnToCidrsEnricher{Base: base}, nil
}

func (e *AsnToCidrsEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	client := newHTTPClient(paramTimeout(e.Param("timeout")))
	var results []*entity.Entity
	for _, asn := range inputs {
		number := asNumber(asn.Get("number"))
		if number == 0 {
			log.Warnf("[asn_to_cidrs] missing AS number on input %v", asn.Map())
			continue
		}
		var data struct {
			Data struct {
				Prefixes []struct {
					Prefix string `json:"prefix"`
				} `json:"prefixes"`
			} `json:"data"`
		}
		u := fmt.Sprintf("https://stat.ripe.net/data/announced-prefixes/data.json?resource=%s", url.QueryEscape(fmt.Sprintf("AS%d", number)))
		if err := getJSON(ctx, client, u, nil, &data); err != nil {
			log.Errorf("[asn_to_cidrs] lookup failed for AS%d: %v", number, err)
			continue
		}
		for _, p := range data.Data.Prefixes {
			version := 4
			if strings.Contains(p.Prefix, ":") {
				version = 6
			}
			cidr, err := entity.CIDR.New(map[string]any{"cidr": p.Prefix, "version": version})
			if err != nil {
				log.Warnf("[asn_to_cidrs] invalid prefix %q: %v", p.Prefix, err)
				continue
			}
			results = append(results, cidr)
		}
		e.LogGraphMessage("AS%d announces %d prefixes", number, len(data.Data.Prefixes))
	}
	return results, nil
}

// Postprocess links each AS to its announced prefixes with ANNOUNCES.
func (e *AsnToCidrsEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, asn := range inputs {
		if err := e.CreateNode(ctx, asn); err != nil {
			return nil, err
		}
	}
	for _, cidr := range results {
		if err := e.CreateNode(ctx, cidr); err != nil {
			return nil, err
		}
		for _, asn := range inputs {
			if err := e.CreateRelationship(ctx, asn, cidr, "ANNOUNCES"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

func asNumber(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case float64:
		return int(x)
	}
	return 0
}

// maxExpandedIPs caps CIDR expansion so a mistyped /8 cannot flood the graph.
const maxExpandedIPs = 256

// CidrToIpsEnricher expands a CIDR range into its host addresses. Pure
// computation, no network calls.
type CidrToIpsEnricher struct {
	*enricher.Base
}

var cidrToIpsDesc = enricher.Descriptor{
	Name:       "cidr_to_ips",
	ClassName:  "CidrToIpsEnricher",
	Category:   "Infrastructure",
	InputType:  "CIDR",
	OutputType: "Ip",
	Key:        "cidr",
	Doc:        "Expands a CIDR range into its individual IP addresses (capped at 256).",
	Icon:       "network",
}

// NewCidrToIpsEnricher builds a configured cidr_to_ips instance.
func NewCidrToIpsEnricher(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
	base, err := enricher.NewBase(ctx, cidrToIpsDesc, cfg)
	if err != nil {
		return nil, err
	}
	return &CidrToIpsEnricher{Base: base}, nil
}

func (e *CidrToIpsEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	var results []*entity.Entity
	for _, c := range inputs {
		cidr, _ := c.Get("cidr").(string)
		addrs, err := expandCIDR(cidr, maxExpandedIPs)
		if err != nil {
			log.Warnf("[cidr_to_ips] invalid CIDR %q: %v", cidr, err)
			continue
		}
		for _, addr := range addrs {
			version := 4
			if strings.Contains(addr, ":") {
				version = 6
			}
			ip, err := entity.Ip.New(map[string]any{"address": addr, "version": version})
			if err != nil {
				continue
			}
			results = append(results, ip)
		}
		e.LogGraphMessage("CIDR %s expands to %d addresses", cidr, len(addrs))
	}
	return results, nil
}

// Postprocess links each range to its addresses with CONTAINS.
func (e *CidrToIpsEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, c := range inputs {
		if err := e.CreateNode(ctx, c); err != nil {
			return nil, err
		}
	}
	for _, ip := range results {
		if err := e.CreateNode(ctx, ip); err != nil {
			return nil, err
		}
		for _, c := range inputs {
			if err := e.CreateRelationship(ctx, c, ip, "CONTAINS"); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// expandCIDR lists the addresses of a prefix up to the cap, skipping the
// network and broadcast addresses of IPv4 ranges wider than /31.
func expandCIDR(cidr string, limit int) ([]string, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
	if err != nil {
		return nil, err
	}
	prefix = prefix.Masked()
	var addrs []string
	skipEdges := prefix.Addr().Is4() && prefix.Bits() < 31
	_, network, nerr := net.ParseCIDR(prefix.String())
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		if skipEdges && nerr == nil {
			ip := net.IP(addr.AsSlice())
			if ip.Equal(network.IP) || isBroadcast(ip, network) {
				continue
			}
		}
		addrs = append(addrs, addr.String())
		if len(addrs) >= limit {
			break
		}
	}
	return addrs, nil
}

func isBroadcast(ip net.IP, network *net.IPNet) bool {
	ip4 := ip.To4()
	if ip4 == nil {
		return false
	}
	broadcast := make(net.IP, len(network.IP.To4()))
	for i := range broadcast {
		broadcast[i] = network.IP.To4()[i] | ^network.Mask[i]
	}
	return ip4.Equal(broadcast)
}
