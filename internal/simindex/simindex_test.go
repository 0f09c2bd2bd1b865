package simindex

import (
	"fmt"
	"testing"
	"time"

	"gitgraph/internal/cochange"
	"gitgraph/internal/featurize"
	"gitgraph/internal/history"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGraph() *cochange.Graph {
	return cochange.NewGraph(cochange.Options{HalfLifeDays: 180, Now: testNow})
}

func fold(t *testing.T, g *cochange.Graph, hash string, paths ...string) {
	t.Helper()
	changes := make([]history.FileChange, 0, len(paths))
	for _, p := range paths {
		changes = append(changes, history.FileChange{Path: p, Kind: history.Modified})
	}
	g.Fold(history.CommitRecord{
		Hash:    hash,
		When:    testNow.Add(-24 * time.Hour),
		Changes: changes,
	})
}

func TestTopKCoChangeOnly(t *testing.T) {
	g := newTestGraph()
	for i := 0; i < 5; i++ {
		fold(t, g, fmt.Sprintf("ab%d", i), "a.go", "b.go")
	}
	fold(t, g, "ac0", "a.go", "c.go")

	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16}, g)
	got := ix.TopK("a.go", 10)

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %v", len(got), got)
	}
	if got[0].Path != "b.go" || got[1].Path != "c.go" {
		t.Errorf("ranking = %v, want b.go then c.go", got)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("frequent co-change pair should outscore rare one: %v", got)
	}
	if got[0].Score != 1.0 {
		t.Errorf("strongest edge normalizes to 1.0, got %v", got[0].Score)
	}
}

func TestTopKExcludesSelf(t *testing.T) {
	g := newTestGraph()
	fold(t, g, "c1", "a.go", "b.go")

	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16}, g)
	for _, r := range ix.TopK("a.go", 10) {
		if r.Path == "a.go" {
			t.Fatal("query file appeared in its own results")
		}
	}
}

func TestTopKContentOnly(t *testing.T) {
	g := newTestGraph()
	f := featurize.New(featurize.Options{ShingleSize: 3, NumHashes: 128})

	base := []byte("func sum(xs []int) int {\n\ttotal := 0\n\tfor _, x := range xs {\n\t\ttotal += x\n\t}\n\treturn total\n}\n")
	near := []byte("func sum(ys []int) int {\n\ttotal := 0\n\tfor _, y := range ys {\n\t\ttotal += y\n\t}\n\treturn total\n}\n")
	far := []byte("SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1;\n")

	// one shared commit makes all three candidates of each other; with a zero
	// co-change weight the ranking is decided purely by content overlap
	fold(t, g, "c1", "base.go", "near.go", "far.sql")

	ix := New(Options{CoChangeWeight: 0, ContentWeight: 1, Bands: 16}, g)
	ix.AddSketch("base.go", f.Sketch(base))
	ix.AddSketch("near.go", f.Sketch(near))
	ix.AddSketch("far.sql", f.Sketch(far))

	got := ix.TopK("base.go", 10)
	if len(got) == 0 {
		t.Fatal("expected content-similar candidates")
	}
	if got[0].Path != "near.go" {
		t.Errorf("top result = %v, want near.go", got[0])
	}
	for _, r := range got {
		if r.Path == "far.sql" && r.Score >= got[0].Score {
			t.Errorf("unrelated file ranked at or above near duplicate: %v", got)
		}
	}
}

func TestTopKTieBreakByPath(t *testing.T) {
	g := newTestGraph()
	// equal-weight edges from hub to both neighbors in one commit
	fold(t, g, "c1", "hub.go", "zeta.go", "alpha.go")

	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16}, g)
	got := ix.TopK("hub.go", 10)

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", got)
	}
	if got[0].Score != got[1].Score {
		t.Fatalf("expected equal scores, got %v", got)
	}
	if got[0].Path != "alpha.go" || got[1].Path != "zeta.go" {
		t.Errorf("ties must order by ascending path, got %v", got)
	}
}

func TestTopKPrefixProperty(t *testing.T) {
	g := newTestGraph()
	fold(t, g, "c1", "q.go", "a.go", "b.go", "c.go")
	for i := 0; i < 3; i++ {
		fold(t, g, fmt.Sprintf("qa%d", i), "q.go", "a.go")
	}
	fold(t, g, "qb0", "q.go", "b.go")

	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16}, g)
	full := ix.TopK("q.go", 5)
	for k := 1; k < len(full); k++ {
		partial := ix.TopK("q.go", k)
		if len(partial) != k {
			t.Fatalf("TopK(%d) returned %d results", k, len(partial))
		}
		for i := range partial {
			if partial[i] != full[i] {
				t.Errorf("TopK(%d)[%d] = %v, not a prefix of TopK(5) %v", k, i, partial[i], full)
			}
		}
	}
}

func TestTopKEdgeCases(t *testing.T) {
	g := newTestGraph()
	fold(t, g, "c1", "a.go", "b.go")
	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16}, g)

	if got := ix.TopK("a.go", 0); len(got) != 0 {
		t.Errorf("k=0 should return no results, got %v", got)
	}
	if got := ix.TopK("unknown.go", 5); len(got) != 0 {
		t.Errorf("unknown path should return empty, got %v", got)
	}
	if got := ix.TopK("a.go", 100); len(got) != 1 {
		t.Errorf("k beyond candidates returns all of them once, got %v", got)
	}
}

func TestTopKDeterministic(t *testing.T) {
	build := func() *Index {
		g := newTestGraph()
		fold(t, g, "c1", "a.go", "b.go", "c.go")
		fold(t, g, "c2", "a.go", "d.go")
		f := featurize.New(featurize.Options{ShingleSize: 3, NumHashes: 64})
		ix := New(Options{CoChangeWeight: 0.6, ContentWeight: 0.4, Bands: 16}, g)
		for _, p := range []string{"a.go", "b.go", "c.go", "d.go"} {
			ix.AddSketch(p, f.Sketch([]byte("content of "+p+" shared prefix for everyone\n")))
		}
		return ix
	}

	first := build().TopK("a.go", 10)
	second := build().TopK("a.go", 10)

	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs across identical builds: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestMaxCandidatesBound(t *testing.T) {
	g := newTestGraph()
	// strongest neighbor first, then progressively weaker ones
	for i := 0; i < 4; i++ {
		fold(t, g, fmt.Sprintf("s%d", i), "q.go", "strong.go")
	}
	fold(t, g, "w1", "q.go", "weak1.go")
	fold(t, g, "w2", "q.go", "weak2.go")

	ix := New(Options{CoChangeWeight: 1, ContentWeight: 0, Bands: 16, MaxCandidates: 1}, g)
	got := ix.TopK("q.go", 10)

	if len(got) != 1 {
		t.Fatalf("candidate bound not applied, got %v", got)
	}
	if got[0].Path != "strong.go" {
		t.Errorf("bound must keep the highest-weight neighbor, got %v", got)
	}
}

func TestPathsUnion(t *testing.T) {
	g := newTestGraph()
	fold(t, g, "c1", "a.go", "b.go")

	f := featurize.New(featurize.Options{ShingleSize: 3, NumHashes: 32})
	ix := New(Options{CoChangeWeight: 1, ContentWeight: 1, Bands: 16}, g)
	ix.AddSketch("b.go", f.Sketch([]byte("package b\n")))
	ix.AddSketch("sketched-only.go", f.Sketch([]byte("package c\n")))

	got := ix.Paths()
	want := []string{"a.go", "b.go", "sketched-only.go"}
	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
