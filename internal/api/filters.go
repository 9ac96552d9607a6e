package api

import (
	"net/url"
	"strconv"
	"strings"
)

// Filters narrows GET /data. Values are kept as strings because they come
// straight from form inputs; an empty field means "no constraint".
type Filters struct {
	AccountUsername string `json:"account_username,omitempty"`
	Keyword         string `json:"keyword,omitempty"`
	Status          string `json:"status,omitempty"`
	Guild           string `json:"guild,omitempty"`
	MinCount        string `json:"min_count,omitempty"`
	MaxCount        string `json:"max_count,omitempty"`
}

// Values encodes the filters as query parameters, omitting empty ones
func (f Filters) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	set("account_username", f.AccountUsername)
	set("keyword", f.Keyword)
	set("status", f.Status)
	set("guild", f.Guild)
	set("min_count", f.MinCount)
	set("max_count", f.MaxCount)
	return v
}

// IsZero reports whether no filter is set
func (f Filters) IsZero() bool {
	return len(f.Values()) == 0
}

// Match applies the filters locally. The crawler applies the same rules
// server-side; this is used by the development backend.
func (f Filters) Match(r Record) bool {
	if s := strings.TrimSpace(f.AccountUsername); s != "" && r.AccountUsername != s {
		return false
	}
	if s := strings.TrimSpace(f.Status); s != "" && r.Status != s {
		return false
	}
	if s := strings.TrimSpace(f.Guild); s != "" && !strings.Contains(r.Guild, s) {
		return false
	}
	if s := strings.TrimSpace(f.Keyword); s != "" {
		if _, ok := r.KeywordsDetected[s]; !ok {
			return false
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(f.MinCount)); err == nil && r.CountCurrent < n {
		return false
	}
	if n, err := strconv.Atoi(strings.TrimSpace(f.MaxCount)); err == nil && r.CountCurrent > n {
		return false
	}
	return true
}

// FiltersFromValues is the inverse of Filters.Values
func FiltersFromValues(v url.Values) Filters {
	return Filters{
		AccountUsername: v.Get("account_username"),
		Keyword:         v.Get("keyword"),
		Status:          v.Get("status"),
		Guild:           v.Get("guild"),
		MinCount:        v.Get("min_count"),
		MaxCount:        v.Get("max_count"),
	}
}

// ExportOptions selects optional CSV columns
type ExportOptions struct {
	IncludeKeywords    bool
	IncludeAccumulated bool
}

// DefaultExportOptions includes every optional column
func DefaultExportOptions() ExportOptions {
	return ExportOptions{IncludeKeywords: true, IncludeAccumulated: true}
}

// Values encodes the export flags as query parameters
func (o ExportOptions) Values() url.Values {
	v := url.Values{}
	v.Set("include_keywords", strconv.FormatBool(o.IncludeKeywords))
	v.Set("include_accumulated", strconv.FormatBool(o.IncludeAccumulated))
	return v
}
