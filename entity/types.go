package entity

// Static type declarations. Every type carries an optional label field used
// for display on the investigation graph; when empty the primary key value is
// shown instead.

func withLabel(fields ...Field) []Field {
	return append(fields, Field{
		Name:        "label",
		Kind:        KindString,
		Description: "UI-readable label for this entity, the one used on the graph.",
	})
}

// Domain is a fully qualified domain name.
var Domain = &Type{
	Name:        "Domain",
	Description: "A registered domain name.",
	Category:    "Infrastructure",
	PrimaryKey:  "domain",
	Fields: withLabel(
		Field{Name: "domain", Kind: KindString, Description: "The domain name.", Required: true},
		Field{Name: "root", Kind: KindString, Description: "The registrable root domain."},
		Field{Name: "tld", Kind: KindString},
	),
}

// Ip is an IPv4 or IPv6 address.
var Ip = &Type{
	Name:        "Ip",
	Description: "An IP address.",
	Category:    "Infrastructure",
	PrimaryKey:  "address",
	Fields: withLabel(
		Field{Name: "address", Kind: KindString, Description: "The IP address.", Required: true},
		Field{Name: "version", Kind: KindNumber, Description: "4 or 6."},
		Field{Name: "country", Kind: KindString},
		Field{Name: "city", Kind: KindString},
	),
}

// Email is an email address.
var Email = &Type{
	Name:        "Email",
	Description: "An email address.",
	Category:    "Communication & Contact",
	PrimaryKey:  "email",
	Fields: withLabel(
		Field{Name: "email", Kind: KindString, Required: true},
		Field{Name: "domain", Kind: KindString, Description: "Domain part of the address."},
	),
}

// ASN is an autonomous system number.
var ASN = &Type{
	Name:        "ASN",
	Description: "An autonomous system.",
	Category:    "Infrastructure",
	PrimaryKey:  "number",
	Fields: withLabel(
		Field{Name: "number", Kind: KindNumber, Description: "The AS number.", Required: true},
		Field{Name: "name", Kind: KindString},
		Field{Name: "country", Kind: KindString},
		Field{Name: "description", Kind: KindString},
	),
}

// CIDR is an announced network range.
var CIDR = &Type{
	Name:        "CIDR",
	Description: "A CIDR network range.",
	Category:    "Infrastructure",
	PrimaryKey:  "cidr",
	Fields: withLabel(
		Field{Name: "cidr", Kind: KindString, Required: true},
		Field{Name: "version", Kind: KindNumber},
	),
}

// Website is a reachable web property.
var Website = &Type{
	Name:        "Website",
	Description: "A website.",
	Category:    "Infrastructure",
	PrimaryKey:  "url",
	Fields: withLabel(
		Field{Name: "url", Kind: KindString, Required: true},
		Field{Name: "title", Kind: KindString},
		Field{Name: "status_code", Kind: KindNumber},
	),
}

// Url is a single link discovered on a website.
var Url = &Type{
	Name:        "Url",
	Description: "A URL.",
	Category:    "Infrastructure",
	PrimaryKey:  "url",
	Fields: withLabel(
		Field{Name: "url", Kind: KindString, Required: true},
	),
}

// Organization is a company or institution.
var Organization = &Type{
	Name:        "Organization",
	Description: "An organization.",
	Category:    "Identities & Entities",
	PrimaryKey:  "name",
	Fields: withLabel(
		Field{Name: "name", Kind: KindString, Required: true},
		Field{Name: "country", Kind: KindString},
		Field{Name: "address", Kind: KindString},
		Field{Name: "registration_id", Kind: KindString},
	),
}

// Individual is a natural person.
var Individual = &Type{
	Name:        "Individual",
	Description: "A natural person.",
	Category:    "Identities & Entities",
	PrimaryKey:  "full_name",
	Fields: withLabel(
		Field{Name: "full_name", Kind: KindString, Required: true},
		Field{Name: "first_name", Kind: KindString},
		Field{Name: "last_name", Kind: KindString},
	),
}

// Username is a handle used across platforms.
var Username = &Type{
	Name:        "Username",
	Description: "A username.",
	Category:    "Identities & Entities",
	PrimaryKey:  "value",
	Fields: withLabel(
		Field{Name: "value", Kind: KindString, Required: true},
	),
}

// SocialAccount is a profile on a social platform.
var SocialAccount = &Type{
	Name:        "SocialAccount",
	Description: "A social media account.",
	Category:    "Communication & Contact",
	PrimaryKey:  "url",
	Fields: withLabel(
		Field{Name: "url", Kind: KindString, Required: true},
		Field{Name: "username", Kind: KindString},
		Field{Name: "platform", Kind: KindString},
	),
}

// Phone is a phone number.
var Phone = &Type{
	Name:        "Phone",
	Description: "A phone number.",
	Category:    "Communication & Contact",
	PrimaryKey:  "number",
	Fields: withLabel(
		Field{Name: "number", Kind: KindString, Required: true},
		Field{Name: "country_code", Kind: KindString},
	),
}

// Phrase is free-form seed text.
var Phrase = &Type{
	Name:        "Phrase",
	Description: "A free-form phrase.",
	Category:    "Global",
	PrimaryKey:  "text",
	Fields: withLabel(
		Field{Name: "text", Kind: KindString, Required: true},
	),
}

// Port is an open network port on an address.
var Port = &Type{
	Name:        "Port",
	Description: "An open port.",
	Category:    "Infrastructure",
	PrimaryKey:  "port",
	Fields: withLabel(
		Field{Name: "port", Kind: KindNumber, Required: true},
		Field{Name: "protocol", Kind: KindString},
		Field{Name: "service", Kind: KindString},
	),
}

// Gravatar is the avatar profile bound to an email address.
var Gravatar = &Type{
	Name:        "Gravatar",
	Description: "A Gravatar profile.",
	Category:    "Communication & Contact",
	PrimaryKey:  "hash",
	Fields: withLabel(
		Field{Name: "hash", Kind: KindString, Required: true},
		Field{Name: "avatar_url", Kind: KindString},
	),
}

// Whois is the registration record of a domain.
var Whois = &Type{
	Name:        "Whois",
	Description: "A WHOIS registration record.",
	Category:    "Infrastructure",
	PrimaryKey:  "domain",
	Fields: withLabel(
		Field{Name: "domain", Kind: KindString, Required: true},
		Field{Name: "registrar", Kind: KindString},
		Field{Name: "creation_date", Kind: KindString},
		Field{Name: "expiration_date", Kind: KindString},
	),
}

// CryptoWallet is a cryptocurrency wallet address.
var CryptoWallet = &Type{
	Name:        "CryptoWallet",
	Description: "A cryptocurrency wallet.",
	Category:    "Financial",
	PrimaryKey:  "address",
	Fields: withLabel(
		Field{Name: "address", Kind: KindString, Required: true},
		Field{Name: "chain", Kind: KindString},
	),
}

// CryptoWalletTransaction is a transfer between two wallets. It is committed
// to the graph as a relationship carrying scalar attributes of its own.
var CryptoWalletTransaction = &Type{
	Name:        "CryptoWalletTransaction",
	Description: "A transaction between two wallets.",
	Category:    "Financial",
	PrimaryKey:  "hash",
	Fields: withLabel(
		Field{Name: "hash", Kind: KindString, Required: true},
		Field{Name: "amount", Kind: KindNumber},
		Field{Name: "currency", Kind: KindString},
		Field{Name: "timestamp", Kind: KindString},
		Field{Name: "source", Kind: KindObject, EntityType: "CryptoWallet"},
		Field{Name: "target", Kind: KindObject, EntityType: "CryptoWallet"},
	),
}

func init() {
	for _, t := range []*Type{
		Domain, Ip, Email, ASN, CIDR, Website, Url,
		Organization, Individual, Username, SocialAccount,
		Phone, Phrase, Port, Gravatar, Whois,
		CryptoWallet, CryptoWalletTransaction,
	} {
		if err := Types.Register(t); err != nil {
			panic(err)
		}
	}
}
