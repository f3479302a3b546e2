package model

import (
	"fmt"
	"strings"
)

// ActionKey builds the cache field for an API resource: "<action>##<uri>".
func ActionKey(method, uri string) string {
	return fmt.Sprintf("%s##%s", strings.ToLower(method), uri)
}

// ResCacheEntry is the derived authorization-cache value for one action key:
// the sets of subject ids currently permitted, plus the merged validity
// window of the contributing edges (union policy: min start, max end).
type ResCacheEntry struct {
	Accounts []string `json:"accounts,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Groups   []string `json:"groups,omitempty"`
	Apps     []string `json:"apps,omitempty"`
	Tenants  []string `json:"tenants,omitempty"`
	StartTs  *int64   `json:"st,omitempty"`
	EndTs    *int64   `json:"et,omitempty"`
}

// Empty reports whether no subject of any type is permitted.
func (e *ResCacheEntry) Empty() bool {
	return len(e.Accounts) == 0 && len(e.Roles) == 0 && len(e.Groups) == 0 &&
		len(e.Apps) == 0 && len(e.Tenants) == 0
}

// MergeWindow widens the entry's window to cover the given edge window.
func (e *ResCacheEntry) MergeWindow(v Validity) {
	if e.StartTs == nil || v.StartTs < *e.StartTs {
		st := v.StartTs
		e.StartTs = &st
	}
	if e.EndTs == nil || v.EndTs > *e.EndTs {
		et := v.EndTs
		e.EndTs = &et
	}
}
