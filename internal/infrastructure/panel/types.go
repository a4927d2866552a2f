package panel

import (
	"net/url"
	"time"
)

// AccountStatus is the control-plane account state.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountDisabled AccountStatus = "disabled"
	AccountLimited  AccountStatus = "limited"
	AccountExpired  AccountStatus = "expired"
)

// Link is one connection descriptor for an account. Host is extracted from
// the raw URI at the client boundary so callers never parse link syntax.
type Link struct {
	Host string `json:"host"`
	Raw  string `json:"raw"`
}

// ParseLink extracts the host from a proxy URI such as
// vless://uuid@node.example.com:443?security=tls#name. Links that fail to
// parse keep an empty host; the raw form is always preserved.
func ParseLink(raw string) Link {
	l := Link{Raw: raw}
	u, err := url.Parse(raw)
	if err != nil {
		return l
	}
	l.Host = u.Hostname()
	return l
}

// Account is the control-plane view of one provisioned account.
type Account struct {
	Username    string
	Status      AccountStatus
	ExpireAt    *time.Time
	Links       []Link
	UsedTraffic int64
	DataLimit   int64
}

// PreferredLink returns the first link whose host matches, falling back to
// the first link when the preferred host has none. The second return is
// false when the account has no links at all.
func (a *Account) PreferredLink(host string) (Link, bool) {
	if len(a.Links) == 0 {
		return Link{}, false
	}
	for _, l := range a.Links {
		if l.Host == host {
			return l, true
		}
	}
	return a.Links[0], true
}

// Usage is the traffic consumption of one account.
type Usage struct {
	Username    string
	UsedTraffic int64
}

// CreateAccountParams carries the inputs for a remote account create.
type CreateAccountParams struct {
	Username string
	// ExpireAt of nil means the account never expires by time.
	ExpireAt *time.Time
}

// wire types

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type userResponse struct {
	Username    string         `json:"username"`
	Status      string         `json:"status"`
	Expire      *int64         `json:"expire"`
	Links       []string       `json:"links"`
	UsedTraffic int64          `json:"used_traffic"`
	DataLimit   int64          `json:"data_limit"`
	Proxies     map[string]any `json:"proxies"`
}

func (u *userResponse) toAccount() *Account {
	acct := &Account{
		Username:    u.Username,
		Status:      AccountStatus(u.Status),
		UsedTraffic: u.UsedTraffic,
		DataLimit:   u.DataLimit,
	}
	if u.Expire != nil && *u.Expire > 0 {
		t := time.Unix(*u.Expire, 0).UTC()
		acct.ExpireAt = &t
	}
	for _, raw := range u.Links {
		acct.Links = append(acct.Links, ParseLink(raw))
	}
	return acct
}

type usersListResponse struct {
	Users []userResponse `json:"users"`
	Total int            `json:"total"`
}

type userUsageResponse struct {
	Username    string `json:"username"`
	UsedTraffic int64  `json:"used_traffic"`
}

type createUserRequest struct {
	Username string         `json:"username"`
	Expire   int64          `json:"expire"`
	Proxies  map[string]any `json:"proxies"`
}
