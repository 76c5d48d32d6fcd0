package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRenderRoundTrip(t *testing.T) {
	raw := "---\n" +
		"title: Child\n" +
		"part_of: index.md\n" +
		"custom_key: hello\n" +
		"another: 42\n" +
		"---\n" +
		"Body text here.\n"

	doc, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, doc.Title)
	require.Equal(t, "Child", *doc.Title)
	require.NotNil(t, doc.PartOf)
	require.Equal(t, "index.md", *doc.PartOf)
	require.Len(t, doc.Extra, 2)
	require.Equal(t, "custom_key", doc.Extra[0].Key)
	require.Equal(t, "another", doc.Extra[1].Key)
	require.Equal(t, "Body text here.\n", doc.Body)

	out, err := Render(doc)
	require.NoError(t, err)

	doc2, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, doc.Title, doc2.Title)
	require.Equal(t, doc.PartOf, doc2.PartOf)
	require.Len(t, doc2.Extra, 2)
	require.Equal(t, "custom_key", doc2.Extra[0].Key)
	require.Equal(t, "another", doc2.Extra[1].Key)
}

func TestParseEmptyContentsMarksIndex(t *testing.T) {
	raw := "---\ntitle: Root\ncontents: []\n---\nHi\n"
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, doc.IsIndex())
	require.True(t, doc.IsRoot())
	require.Empty(t, *doc.Contents)
}

func TestParseNoFrontmatter(t *testing.T) {
	doc, err := Parse("just a body\nno frontmatter\n")
	require.NoError(t, err)
	require.Nil(t, doc.Title)
	require.Nil(t, doc.Contents)
	require.Equal(t, "just a body\nno frontmatter\n", doc.Body)
}

func TestParseCRLF(t *testing.T) {
	raw := "---\r\ntitle: X\r\n---\r\nbody\r\n"
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "X", *doc.Title)
	require.Equal(t, "body\n", doc.Body)
}

func TestParseUnterminatedFrontmatter(t *testing.T) {
	_, err := Parse("---\ntitle: X\nno closer\n")
	require.Error(t, err)
}

func TestRenderUsesLF(t *testing.T) {
	title := "X"
	doc := &Document{Title: &title, Body: "line1\r\nline2\r\n"}
	out, err := Render(doc)
	require.NoError(t, err)
	require.NotContains(t, out, "\r\n")
}

func TestContentsAndAttachmentsList(t *testing.T) {
	raw := "---\ncontents:\n  - a.md\n  - b.md\nattachments:\n  - img.png\n---\nbody\n"
	doc, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"a.md", "b.md"}, *doc.Contents)
	require.Equal(t, []string{"img.png"}, *doc.Attachments)
}
