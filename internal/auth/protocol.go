package auth

import "time"

type tokenRoot struct {
	Token tokenBody `json:"token"`
}

type tokenBody struct {
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
	Methods   []string  `json:"methods"`
	Catalog   Catalog   `json:"catalog"`
}

type authRequest struct {
	Auth authBlock `json:"auth"`
}

type authBlock struct {
	Identity identityBlock `json:"identity"`
	Scope    *scopeBlock   `json:"scope,omitempty"`
}

type identityBlock struct {
	Methods               []string               `json:"methods"`
	Password              *passwordBlock         `json:"password,omitempty"`
	ApplicationCredential *applicationCredential `json:"application_credential,omitempty"`
}

type passwordBlock struct {
	User userBlock `json:"user"`
}

type userBlock struct {
	Name     string       `json:"name"`
	Domain   *domainBlock `json:"domain,omitempty"`
	Password string       `json:"password"`
}

type applicationCredential struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type domainBlock struct {
	Name string `json:"name"`
}

type scopeBlock struct {
	Project *projectBlock `json:"project,omitempty"`
}

type projectBlock struct {
	ID     string       `json:"id,omitempty"`
	Name   string       `json:"name,omitempty"`
	Domain *domainBlock `json:"domain,omitempty"`
}
