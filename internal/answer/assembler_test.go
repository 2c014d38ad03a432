package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/localdocs/localdocs-cli/internal/search"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

type fakeClient struct {
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeClient) ModelName() string { return "fake-model" }

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func sampleResults() []search.Result {
	return []search.Result{
		{
			SourceNum: 1,
			Score:     0.91,
			Chunk: index.ChunkRecord{
				ID: 7, Path: "/docs/manual.pdf", Type: "pdf",
				Text: "Install with make install.", Start: 0, End: 26, Page: 3,
			},
		},
		{
			SourceNum: 2,
			Score:     0.64,
			Chunk: index.ChunkRecord{
				ID: 12, Path: "/docs/notes.md", Type: "md",
				Text: "Run tests before release.", Start: 100, End: 125, Section: "Process",
			},
		},
	}
}

func TestAssemble_BuildsNumberedPrompt(t *testing.T) {
	cli := &fakeClient{reply: "Use make install. [Source 1]"}
	a := &Assembler{Client: cli}

	got, err := a.Assemble(context.Background(), "how do I install?", sampleResults())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if cli.calls != 1 {
		t.Fatalf("expected exactly one completion call, got %d", cli.calls)
	}

	if !strings.Contains(cli.system, "ONLY the provided context") {
		t.Errorf("system prompt missing grounding rule: %q", cli.system)
	}
	if !strings.Contains(cli.user, "[Source 1] manual.pdf (page 3)\nInstall with make install.") {
		t.Errorf("source 1 block malformed:\n%s", cli.user)
	}
	if !strings.Contains(cli.user, "[Source 2] notes.md (Process)\nRun tests before release.") {
		t.Errorf("source 2 block malformed:\n%s", cli.user)
	}
	if !strings.HasSuffix(cli.user, "Question: how do I install?") {
		t.Errorf("question should come last:\n%s", cli.user)
	}

	if got.Answer != "Use make install. [Source 1]" {
		t.Errorf("answer = %q", got.Answer)
	}
	if got.Model != "fake-model" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(got.Sources))
	}
	s := got.Sources[0]
	if s.SourceNum != 1 || s.File != "manual.pdf" || s.Page != 3 || s.Score != 0.91 {
		t.Errorf("source 0 = %+v", s)
	}
	if s.ChunkID != 7 || s.Type != "pdf" {
		t.Errorf("source 0 chunk identity = id %d type %q", s.ChunkID, s.Type)
	}
	if s.Preview != "Install with make install." {
		t.Errorf("short text should be its own preview, got %q", s.Preview)
	}
}

func TestAssemble_NoResultsSkipsCompletion(t *testing.T) {
	cli := &fakeClient{reply: "should never be used"}
	a := &Assembler{Client: cli}

	_, err := a.Assemble(context.Background(), "anything?", nil)
	if !errors.Is(err, ErrNoRelevantContext) {
		t.Fatalf("expected ErrNoRelevantContext, got %v", err)
	}
	if cli.calls != 0 {
		t.Fatalf("no completion call may be spent without context, got %d", cli.calls)
	}
}

func TestAssemble_CompletionErrorPassesThrough(t *testing.T) {
	boom := errors.New("backend down")
	a := &Assembler{Client: &fakeClient{err: boom}}

	_, err := a.Assemble(context.Background(), "q?", sampleResults())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestAssemble_EmptyQuestion(t *testing.T) {
	a := &Assembler{Client: &fakeClient{}}
	if _, err := a.Assemble(context.Background(), "  ", sampleResults()); err == nil {
		t.Fatalf("expected error for blank question")
	}
}

func TestPreview_Truncation(t *testing.T) {
	long := strings.Repeat("é", 250)
	got := preview(long)
	if want := strings.Repeat("é", 200) + "..."; got != want {
		t.Fatalf("preview should cut at 200 runes: got %d runes", len([]rune(got)))
	}

	exact := strings.Repeat("x", 200)
	if preview(exact) != exact {
		t.Fatalf("exactly 200 runes should not be truncated")
	}
}

func TestSourceLocation(t *testing.T) {
	cases := []struct {
		src  Source
		want string
	}{
		{Source{Page: 3, Section: "Intro"}, "page 3, Intro"},
		{Source{Page: 3}, "page 3"},
		{Source{Section: "Intro"}, "Intro"},
		{Source{}, ""},
	}
	for _, c := range cases {
		if got := c.src.Location(); got != c.want {
			t.Errorf("Location(%+v) = %q, want %q", c.src, got, c.want)
		}
	}
}
