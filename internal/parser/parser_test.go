package parser

import (
	"testing"
)

func TestLinks_Basic(t *testing.T) {
	body := "See [[Note A]] and [[Note B|alias]].\nAlso [[Note A]] again."
	links := Links(body)
	if len(links) != 2 {
		t.Fatalf("len(links) = %d, want 2", len(links))
	}
	if links[0] != "Note A" || links[1] != "Note B" {
		t.Errorf("links = %v", links)
	}
}

func TestLinks_EmptyTarget(t *testing.T) {
	links := Links("see [[ ]] and [[|alias]]")
	if len(links) != 0 {
		t.Errorf("expected no links, got %v", links)
	}
}

func TestLinks_GeneratedDocument(t *testing.T) {
	links := Links("[[A]]\n\n- [[Foo]] one\n\n---\n\n[[B]]\n\n[[Foo|x]]\n\n")
	want := []string{"A", "Foo", "B"}
	if len(links) != len(want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestCountMarkers(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		target string
		want   int
	}{
		{"empty", "", "Foo", 0},
		{"plain", "[[Foo]]", "Foo", 1},
		{"alias", "[[Foo|the foo]] and [[Foo]]", "Foo", 2},
		{"empty alias does not count", "[[Foo|]]", "Foo", 0},
		{"longer name does not count", "[[Foobar]]", "Foo", 0},
		{"case sensitive", "[[foo]]", "Foo", 0},
		{"special characters", "[[Meeting (2024)]] and [[a.b]]", "Meeting (2024)", 1},
		{"dot is literal", "[[aXb]]", "a.b", 0},
		{"unclosed", "[[Foo", "Foo", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CountMarkers(tc.body, tc.target); got != tc.want {
				t.Errorf("CountMarkers(%q, %q) = %d, want %d", tc.body, tc.target, got, tc.want)
			}
		})
	}
}
