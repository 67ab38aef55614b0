package models

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/reelx/internal/shared"
)

// MediaType identifies the kind of a catalog result.
type MediaType string

const (
	MediaMovie  MediaType = "movie"
	MediaTV     MediaType = "tv"
	MediaPerson MediaType = "person"
)

// Fingerprint is a deterministic key derived from every parameter that affects a result set.
type Fingerprint string

// Filters holds the query-affecting parameters of a discovery request.
type Filters struct {
	Mood      string
	Category  string
	Region    string
	Providers []int
	Types     []string
	MinRating float64
	Broad     bool
}

// normalized returns a copy with case, ordering and duplicates removed so equal result
// sets share one representation.
func (f Filters) normalized() Filters {
	n := Filters{
		Mood:      strings.TrimSpace(f.Mood),
		Category:  strings.TrimSpace(f.Category),
		Region:    strings.ToUpper(strings.TrimSpace(f.Region)),
		MinRating: f.MinRating,
		Broad:     f.Broad,
	}

	n.Providers = slices.Clone(f.Providers)
	slices.Sort(n.Providers)
	n.Providers = slices.Compact(n.Providers)

	for _, t := range f.Types {
		n.Types = append(n.Types, strings.ToLower(strings.TrimSpace(t)))
	}
	slices.Sort(n.Types)
	n.Types = slices.Compact(n.Types)

	return n
}

// Fingerprint derives the cache key for these filters. Text values are query-escaped so
// a delimiter inside one value cannot collide with another field.
func (f Filters) Fingerprint() Fingerprint {
	n := f.normalized()
	types := make([]string, len(n.Types))
	for i, t := range n.Types {
		types[i] = url.QueryEscape(t)
	}
	return Fingerprint(fmt.Sprintf("mood=%s;category=%s;region=%s;providers=%s;types=%s;rating=%.1f;broad=%t",
		url.QueryEscape(n.Mood), url.QueryEscape(n.Category), url.QueryEscape(n.Region),
		joinInts(n.Providers), strings.Join(types, ","), n.MinRating, n.Broad))
}

// Validate rejects filters the discovery endpoint cannot serve.
func (f Filters) Validate() error {
	if strings.TrimSpace(f.Mood) == "" && strings.TrimSpace(f.Category) == "" {
		return fmt.Errorf("%w: mood or category is required", shared.ErrValidation)
	}
	if f.MinRating < 0 || f.MinRating > 10 {
		return fmt.Errorf("%w: rating floor %.1f is outside 0-10", shared.ErrValidation, f.MinRating)
	}
	for _, t := range f.Types {
		switch MediaType(strings.ToLower(strings.TrimSpace(t))) {
		case MediaMovie, MediaTV:
		default:
			return fmt.Errorf("%w: unknown content type %q", shared.ErrValidation, t)
		}
	}
	return nil
}

// Query encodes the filters as discovery endpoint parameters.
func (f Filters) Query() url.Values {
	n := f.normalized()
	q := url.Values{}
	if n.Mood != "" {
		q.Set("mood", n.Mood)
	}
	if n.Category != "" {
		q.Set("category", n.Category)
	}
	if n.Region != "" {
		q.Set("region", n.Region)
	}
	if len(n.Providers) > 0 {
		q.Set("providers", joinInts(n.Providers))
	}
	if len(n.Types) > 0 {
		q.Set("types", strings.Join(n.Types, ","))
	}
	if n.MinRating > 0 {
		q.Set("min_rating", strconv.FormatFloat(n.MinRating, 'f', 1, 64))
	}
	if n.Broad {
		q.Set("broad", "true")
	}
	return q
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ResultItem is one catalog result. ID is the uniqueness key across pages and sub-queries.
type ResultItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title,omitempty"`
	Name        string    `json:"name,omitempty"`
	PosterPath  string    `json:"poster_path,omitempty"`
	ProfilePath string    `json:"profile_path,omitempty"`
	Overview    string    `json:"overview,omitempty"`
	ReleaseDate string    `json:"release_date,omitempty"`
	MediaType   MediaType `json:"media_type,omitempty"`
	VoteAverage float64   `json:"vote_average,omitempty"`
	Popularity  float64   `json:"popularity,omitempty"`
}

// DisplayTitle returns Title, falling back to Name for shows and people.
func (r ResultItem) DisplayTitle() string {
	return keep(r.Title, r.Name)
}

// Image returns the poster, or the profile picture for people.
func (r ResultItem) Image() string {
	return keep(r.PosterPath, r.ProfilePath)
}

// Page is one page of results. TotalPages of zero means the server did not report it.
type Page struct {
	Page       int          `json:"page,omitempty"`
	Results    []ResultItem `json:"results"`
	TotalPages int          `json:"total_pages,omitempty"`
}

// Total returns the reported page count, treating an absent count as a single page.
func (p Page) Total() int {
	if p.TotalPages <= 0 {
		return 1
	}
	return p.TotalPages
}

// Genre is a catalog genre.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Provider is a streaming provider offering a title in a region.
type Provider struct {
	ID       int    `json:"provider_id"`
	Name     string `json:"provider_name"`
	LogoPath string `json:"logo_path,omitempty"`
}

// Detail is the full record of one title.
type Detail struct {
	ResultItem
	Tagline   string     `json:"tagline,omitempty"`
	Runtime   int        `json:"runtime,omitempty"`
	Genres    []Genre    `json:"genres,omitempty"`
	Providers []Provider `json:"providers,omitempty"`
	Trailer   string     `json:"trailer,omitempty"`
}
