package models

import (
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/reelx/internal/shared"
	"golang.org/x/oauth2"
)

func TestCredential(t *testing.T) {
	t.Run("Authenticated", func(t *testing.T) {
		if (Credential{RefreshToken: "r"}).Authenticated() {
			t.Error("credential without access token should not be authenticated")
		}
		if !(Credential{AccessToken: "a"}).Authenticated() {
			t.Error("credential with access token should be authenticated")
		}
	})

	t.Run("Token", func(t *testing.T) {
		tok := Credential{AccessToken: "a", RefreshToken: "r"}.Token()
		if tok.AccessToken != "a" || tok.RefreshToken != "r" || tok.Type() != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}
	})

	t.Run("CredentialFromToken", func(t *testing.T) {
		got := CredentialFromToken(&oauth2.Token{AccessToken: "new"}, "old-refresh")
		if got != (Credential{AccessToken: "new", RefreshToken: "old-refresh"}) {
			t.Errorf("expected refresh fallback, got %+v", got)
		}

		got = CredentialFromToken(&oauth2.Token{AccessToken: "new", RefreshToken: "rotated"}, "old-refresh")
		if got.RefreshToken != "rotated" {
			t.Errorf("expected rotated refresh token, got %s", got.RefreshToken)
		}

		if CredentialFromToken(nil, "x").Authenticated() {
			t.Error("nil token should produce an empty credential")
		}
	})
}

func TestFilters(t *testing.T) {
	t.Run("Fingerprint is order and case insensitive", func(t *testing.T) {
		a := Filters{Mood: "cozy", Region: "us", Providers: []int{9, 8, 8}, Types: []string{"tv", "movie"}, MinRating: 7}
		b := Filters{Mood: " cozy ", Region: "US", Providers: []int{8, 9}, Types: []string{"Movie", "tv", "tv"}, MinRating: 7.0}

		if a.Fingerprint() != b.Fingerprint() {
			t.Errorf("expected equal fingerprints:\n%s\n%s", a.Fingerprint(), b.Fingerprint())
		}
	})

	t.Run("Fingerprint changes with any parameter", func(t *testing.T) {
		base := Filters{Mood: "cozy", Region: "US"}
		variants := []Filters{
			{Mood: "tense", Region: "US"},
			{Mood: "cozy", Category: "drama", Region: "US"},
			{Mood: "cozy", Region: "GB"},
			{Mood: "cozy", Region: "US", Providers: []int{8}},
			{Mood: "cozy", Region: "US", Types: []string{"tv"}},
			{Mood: "cozy", Region: "US", MinRating: 6.5},
			{Mood: "cozy", Region: "US", Broad: true},
		}

		for _, v := range variants {
			if v.Fingerprint() == base.Fingerprint() {
				t.Errorf("expected %+v to differ from base", v)
			}
		}
	})

	t.Run("Fingerprint escapes delimiters inside values", func(t *testing.T) {
		a := Filters{Mood: "happy;category=drama"}
		b := Filters{Mood: "happy", Category: "drama;category="}

		if a.Query().Encode() == b.Query().Encode() {
			t.Fatal("expected different discovery queries")
		}
		if a.Fingerprint() == b.Fingerprint() {
			t.Errorf("distinct filters share fingerprint %s", a.Fingerprint())
		}

		c := Filters{Mood: "cozy", Types: []string{"tv,movie"}}
		d := Filters{Mood: "cozy", Types: []string{"tv", "movie"}}
		if c.Fingerprint() == d.Fingerprint() {
			t.Errorf("type containing a comma collides with two types: %s", c.Fingerprint())
		}
	})

	t.Run("Fingerprint does not mutate input", func(t *testing.T) {
		f := Filters{Providers: []int{3, 1, 2}}
		f.Fingerprint()
		if !reflect.DeepEqual(f.Providers, []int{3, 1, 2}) {
			t.Errorf("providers were mutated: %v", f.Providers)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			filters Filters
			wantErr bool
		}{
			{name: "mood only", filters: Filters{Mood: "cozy"}},
			{name: "category only", filters: Filters{Category: "drama", Types: []string{"movie", "TV"}}},
			{name: "missing mood and category", filters: Filters{Region: "US"}, wantErr: true},
			{name: "rating too high", filters: Filters{Mood: "cozy", MinRating: 11}, wantErr: true},
			{name: "negative rating", filters: Filters{Mood: "cozy", MinRating: -1}, wantErr: true},
			{name: "unknown type", filters: Filters{Mood: "cozy", Types: []string{"podcast"}}, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.filters.Validate()
				if tt.wantErr && !errors.Is(err, shared.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				if !tt.wantErr && err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("Query", func(t *testing.T) {
		q := Filters{Mood: "cozy", Region: "gb", Providers: []int{9, 8}, Types: []string{"tv"}, MinRating: 6.5, Broad: true}.Query()

		want := map[string]string{
			"mood":       "cozy",
			"region":     "GB",
			"providers":  "8,9",
			"types":      "tv",
			"min_rating": "6.5",
			"broad":      "true",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		if q.Has("category") {
			t.Error("empty category should be omitted")
		}
	})
}

func TestResultItem(t *testing.T) {
	if got := (ResultItem{Name: "Severance"}).DisplayTitle(); got != "Severance" {
		t.Errorf("expected name fallback, got %s", got)
	}
	if got := (ResultItem{Title: "Inception", Name: "ignored"}).DisplayTitle(); got != "Inception" {
		t.Errorf("expected title, got %s", got)
	}
	if got := (ResultItem{ProfilePath: "/p.jpg"}).Image(); got != "/p.jpg" {
		t.Errorf("expected profile fallback, got %s", got)
	}
	if got := (Page{}).Total(); got != 1 {
		t.Errorf("absent total pages should count as 1, got %d", got)
	}
	if got := (Page{TotalPages: 4}).Total(); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

func TestMerge(t *testing.T) {
	t.Run("MergeDisplay keeps known title", func(t *testing.T) {
		local := WatchlistItem{ID: 1, Title: "Inception", PosterPath: "/inception.jpg", Status: StatusPlanned}
		server := WatchlistItem{ID: 1, Status: StatusWatched}

		got := server.MergeDisplay(local)
		if got.Title != "Inception" || got.PosterPath != "/inception.jpg" {
			t.Errorf("display fields regressed: %+v", got)
		}
		if got.Status != StatusWatched {
			t.Errorf("server status should win, got %s", got.Status)
		}
	})

	t.Run("MergeDisplay accepts replacement", func(t *testing.T) {
		local := RoomMovie{ID: 1, Title: "Old"}
		got := RoomMovie{ID: 1, Title: "New"}.MergeDisplay(local)
		if got.Title != "New" {
			t.Errorf("non-empty server title should replace local, got %s", got.Title)
		}
	})

	t.Run("MergeCollection", func(t *testing.T) {
		local := []RoomMovie{
			{ID: 1, Title: "Alien", PosterPath: "/alien.jpg", Score: 1},
			{ID: 2, Title: "Heat", Score: 0},
		}
		server := []RoomMovie{
			{ID: 2, Score: 3},
			{ID: 3, Title: "Ran"},
			{ID: 1, Score: 2},
		}

		got := MergeCollection(local, server)
		want := []RoomMovie{
			{ID: 2, Title: "Heat", Score: 3},
			{ID: 3, Title: "Ran"},
			{ID: 1, Title: "Alien", PosterPath: "/alien.jpg", Score: 2},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("MergeCollection() = %+v, want %+v", got, want)
		}
	})
}

func TestCollab(t *testing.T) {
	t.Run("WatchStatus", func(t *testing.T) {
		for _, s := range []WatchStatus{StatusPlanned, StatusWatching, StatusWatched} {
			if !s.Valid() {
				t.Errorf("%s should be valid", s)
			}
		}
		if WatchStatus("dropped").Valid() {
			t.Error("unknown status should be invalid")
		}
	})

	t.Run("ApplyVote", func(t *testing.T) {
		tc := []struct {
			name      string
			start     RoomMovie
			vote      int
			wantScore int
		}{
			{name: "upvote from none", start: RoomMovie{Score: 2}, vote: 1, wantScore: 3},
			{name: "flip to downvote", start: RoomMovie{Score: 3, UserVote: 1}, vote: -1, wantScore: 1},
			{name: "clear upvote", start: RoomMovie{Score: 3, UserVote: 1}, vote: 0, wantScore: 2},
			{name: "repeat vote", start: RoomMovie{Score: 3, UserVote: 1}, vote: 1, wantScore: 3},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				m := tt.start
				if err := m.ApplyVote(tt.vote); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if m.Score != tt.wantScore || m.UserVote != tt.vote {
					t.Errorf("got score %d vote %d, want %d %d", m.Score, m.UserVote, tt.wantScore, tt.vote)
				}
			})
		}

		m := RoomMovie{Score: 1}
		if err := m.ApplyVote(2); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
		if m.Score != 1 {
			t.Errorf("invalid vote should not change score, got %d", m.Score)
		}
	})
}
