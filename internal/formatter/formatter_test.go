package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemadrift/internal/reconcile"
)

func testReport() *reconcile.Report {
	issues := []reconcile.Issue{
		{Kind: reconcile.KindMissingColumn, Severity: reconcile.SeverityError, Message: "Column 'email' is defined in model 'User' but missing in table 'users'", Model: "User", Table: "users", Field: "email", Column: "email"},
		{Kind: reconcile.KindTypeMismatch, Severity: reconcile.SeverityError, Message: "Type mismatch for 'age' in 'User': expected Int but found text", Model: "User", Table: "users", Field: "age", Column: "age", Expected: "Int", Actual: "text"},
		{Kind: reconcile.KindMissingIndex, Severity: reconcile.SeverityWarning, Message: "Index on (author_id) is defined in model 'Post' but missing in table 'post'", Model: "Post", Table: "post", Columns: []string{"author_id"}},
		{Kind: reconcile.KindMissingEnumValue, Severity: reconcile.SeverityError, Message: "Enum value 'USER' is defined in 'Role' but missing in database", Enum: "role", Value: "USER"},
		{Kind: reconcile.KindDuplicateRoutine, Severity: reconcile.SeverityWarning, Message: "Function 'touch' has 2 duplicates", Function: "touch", Count: 2},
	}
	return &reconcile.Report{
		RunID:     "3b241101-e2bb-4255-8caf-4136c566a962",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Issues:    issues,
		Summary:   reconcile.Summarize(issues),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    any
		wantErr bool
	}{
		{format: "", want: &TextFormatter{}},
		{format: FormatText, want: &TextFormatter{}},
		{format: FormatJSON, want: &JSONFormatter{}},
		{format: FormatYAML, want: &YAMLFormatter{}},
		{format: FormatMarkdown, want: &MarkdownFormatter{}},
		{format: "html", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := New(tt.format, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, f)
		})
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(testReport()))
	out := buf.String()

	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "MissingColumn")
	assert.Contains(t, out, "users.email")
	assert.Contains(t, out, "post(author_id)")
	assert.Contains(t, out, "role.USER")
	assert.Contains(t, out, "touch()")
	assert.NotContains(t, out, "\x1b[", "colour is off by default")
	assert.True(t, strings.HasSuffix(out, "5 issues: 3 errors, 2 warnings\n"))
}

func TestTextFormatter_NoIssues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(reconcile.NewReport(nil)))
	assert.Equal(t, "No integrity issues found\n", buf.String())
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(testReport()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Database Integrity Report\n\n"))
	assert.Contains(t, out, "- **Generated:** 2026-03-14T09:26:53Z\n")
	assert.Contains(t, out, "- **Summary:** 5 issues: 3 errors, 2 warnings\n")
	assert.Contains(t, out, "(expected Int, found text)")
	assert.Contains(t, out, "(2 definitions)")

	sections := []string{"## users", "## post", "## Enums", "## Routines"}
	last := -1
	for _, s := range sections {
		idx := strings.Index(out, s+"\n")
		require.GreaterOrEqual(t, idx, 0, s)
		assert.Greater(t, idx, last, "%s out of order", s)
		last = idx
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(&buf).Format(testReport()))

	r, err := reconcile.ReadReport(&buf)
	require.NoError(t, err)
	assert.Equal(t, testReport().Issues, r.Issues)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter(&buf).Format(testReport()))

	var decoded struct {
		RunID   string            `yaml:"run_id"`
		Issues  []reconcile.Issue `yaml:"issues"`
		Summary reconcile.Summary `yaml:"summary"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "3b241101-e2bb-4255-8caf-4136c566a962", decoded.RunID)
	assert.Equal(t, testReport().Issues, decoded.Issues)
	assert.Equal(t, reconcile.Summary{Total: 5, Errors: 3, Warnings: 2}, decoded.Summary)
	assert.Contains(t, buf.String(), "kind: MissingColumn")
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "report")
	require.NoError(t, NewMultiFileFormatter(dir).Format(testReport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"_overview.md", "users.md", "post.md"}, names)

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "- **post** (0 errors, 1 warnings)\n- **users** (2 errors, 0 warnings)\n")
	assert.Contains(t, string(overview), "## Enums")
	assert.Contains(t, string(overview), "## Routines")

	users, err := os.ReadFile(filepath.Join(dir, "users.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(users), "## users\n\n"))
	assert.Equal(t, 2, strings.Count(string(users), "\n- **error**"))
}
