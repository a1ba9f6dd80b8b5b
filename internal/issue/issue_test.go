// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValuesOrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), PermissionDeniedId)
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", v.Id())
		}
		if Get(v.Id()) != v {
			t.Errorf("Get(%d) does not return the catalog entry", v.Id())
		}
	}
	if Get(0) != nil {
		t.Error("Get(0) should return nil")
	}
}

func TestIssueLinksAreCopies(t *testing.T) {
	t.Parallel()

	i := &Issue{id: 99, docLinks: []HttpLink{"https://example.com/a"}}
	links := i.DocLinks()
	links[0] = "changed"
	if i.DocLinks()[0] != "https://example.com/a" {
		t.Error("DocLinks() exposed the internal slice")
	}
}

func TestIssueRender(t *testing.T) {
	t.Parallel()

	for _, v := range Values() {
		out, err := v.Render("notty")
		if err != nil {
			t.Errorf("Render(%d) error = %v", v.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%d) returned empty output", v.Id())
		}
	}

	out, err := Get(SessionNotFoundId).Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Session not found") {
		t.Errorf("rendered output missing title:\n%s", out)
	}

	linked := &Issue{id: 99, mdMsg: "# Title", extLinks: []HttpLink{"https://example.com/help"}}
	out, err = linked.Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "See also") || !strings.Contains(out, "example.com/help") {
		t.Errorf("rendered output missing links:\n%s", out)
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	if _, err := Get(ShellNotFoundId).Render("/nonexistent/style.json"); err == nil {
		t.Error("Render() with a missing style file should fail")
	}
}
