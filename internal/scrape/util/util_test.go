package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseAddedDate(t *testing.T) {
	want := time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"Feb 3, 2025",
		"February 3, 2025",
		"02/03/2025",
		"2/3/2025",
		"2025-02-03",
		"  February 3, 2025 ",
	} {
		got, ok := ParseAddedDate(raw)
		if !ok || !got.Equal(want) {
			t.Errorf("ParseAddedDate(%q) = %v, %v", raw, got, ok)
		}
	}
	for _, raw := range []string{"", "yesterday", "2025/02/03", "Feb 30, 2025"} {
		if _, ok := ParseAddedDate(raw); ok {
			t.Errorf("ParseAddedDate(%q) parsed", raw)
		}
	}
}

func TestResolveDecisionDate(t *testing.T) {
	tests := []struct {
		label string
		added time.Time
		want  string
	}{
		{"Accepted on 15 Dec", time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), "2024-12-15"},
		{"Rejected on 2 Feb", time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC), "2025-02-02"},
		{"Interview on 20 Feb", time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC), "2025-02-20"},
		{"Wait listed on 1 March", time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "2025-03-01"},
		{"accepted ON 9 jan", time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC), "2025-01-09"},
		{"Accepted on 29 Feb", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), "2024-02-29"},
		{"Accepted on 31 Feb", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), ""},
		{"Accepted on 29 Feb", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), ""},
		{"Accepted", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), ""},
		{"Accepted on 3 Smarch", time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), ""},
		{"Accepted on 3 Mar", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ResolveDecisionDate(tt.label, tt.added)
			if tt.want == "" {
				if ok {
					t.Fatalf("got %v, want none", got)
				}
				return
			}
			if !ok || got.Format("2006-01-02") != tt.want {
				t.Fatalf("got %v (%v), want %s", got, ok, tt.want)
			}
			if y := got.Year(); y != tt.added.Year() && y != tt.added.Year()-1 {
				t.Fatalf("year %d outside added year window", y)
			}
		})
	}
}

func TestParseScores(t *testing.T) {
	if v := ParseGPA("3.87"); v == nil || *v != 3.87 {
		t.Errorf("ParseGPA(3.87) = %v", v)
	}
	for _, raw := range []string{"0.00", "4.3", "-1", "abc", ""} {
		if v := ParseGPA(raw); v != nil {
			t.Errorf("ParseGPA(%q) = %v, want nil", raw, *v)
		}
	}
	if v := ParseGPA("4.0"); v == nil {
		t.Error("ParseGPA(4.0) rejected upper bound")
	}

	if v := ParseGRE("170"); v == nil || *v != 170 {
		t.Errorf("ParseGRE(170) = %v", v)
	}
	for _, raw := range []string{"129", "171", "330"} {
		if v := ParseGRE(raw); v != nil {
			t.Errorf("ParseGRE(%q) = %v, want nil", raw, *v)
		}
	}

	if v := ParseWriting("0"); v == nil {
		t.Error("ParseWriting(0) rejected lower bound")
	}
	if v := ParseWriting("6.5"); v != nil {
		t.Errorf("ParseWriting(6.5) = %v, want nil", *v)
	}
}

func TestSplitProgram(t *testing.T) {
	tests := []struct{ raw, program, degree, level string }{
		{"EconomicsPhD", "Economics", "PhD", "PhD"},
		{"Applied Economics Masters", "Applied Economics", "Masters", "Masters"},
		{"Economics Master", "Economics", "Master", "Masters"},
		{"Agricultural EconomicsDoctorate", "Agricultural Economics", "Doctorate", "PhD"},
		{"Economics", "Economics", "", ""},
	}
	for _, tt := range tests {
		p, d := SplitProgram(tt.raw)
		if p != tt.program || d != tt.degree {
			t.Errorf("SplitProgram(%q) = %q, %q", tt.raw, p, d)
		}
		if got := NormalizeDegree(d); got != tt.level {
			t.Errorf("NormalizeDegree(%q) = %q, want %q", d, got, tt.level)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	for raw, want := range map[string]string{
		"American":       "American",
		" International": "International",
		"Other":          "Other",
		"Canadian":       "",
		"":               "",
	} {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestHostLimiterSpacesRequests(t *testing.T) {
	hl := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := hl.WaitURL(ctx, "https://www.thegradcafe.com/survey/"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("3 requests took %v, want >= ~100ms", elapsed)
	}

	// a different host has its own budget
	start = time.Now()
	if err := hl.WaitURL(ctx, "https://example.org/"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("first request to new host waited %v", elapsed)
	}
}

func TestRobotsGate(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
			fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := NewRobotsGate(srv.Client(), "gradwatch-test")
	ctx := context.Background()

	if !g.Allowed(ctx, srv.URL+"/survey/?program=economics") {
		t.Error("survey path should be allowed")
	}
	if g.Allowed(ctx, srv.URL+"/private/x") {
		t.Error("private path should be disallowed")
	}
	if hits != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", hits)
	}
}
