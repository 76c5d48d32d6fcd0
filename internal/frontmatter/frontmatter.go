// Package frontmatter parses and renders the YAML frontmatter block of a
// workspace markdown file (spec §6): a block delimited by lines
// containing exactly "---", followed by the body. Recognized keys map to
// FileMetadata fields (spec §3); everything else round-trips verbatim
// under Extra, in its original key order.
//
// Grounded on internal/aclspec/ruleset.go's use of gopkg.in/yaml.v3
// (Unmarshal on load, Encoder+SetIndent(2) on save); the known/extra key
// split itself has no teacher analog and follows
// _examples/original_source/crates/diaryx_core/src/workspace/types.rs's
// IndexFrontmatter (#[serde(flatten)] extra field).
package frontmatter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// knownKeys lists the recognized frontmatter keys in the fixed order
// they are written back out, matching the field order of spec §3's
// FileMetadata.
var knownKeys = []string{"title", "description", "part_of", "contents", "audience", "attachments"}

func isKnownKey(k string) bool {
	for _, kk := range knownKeys {
		if kk == k {
			return true
		}
	}
	return false
}

// ExtraField is one preserved-order unrecognized frontmatter key/value.
type ExtraField struct {
	Key   string
	Value *yaml.Node
}

// Document is the parsed representation of one workspace file.
type Document struct {
	Title       *string
	Description *string
	PartOf      *string
	// Contents is nil when the key is absent, and a (possibly empty)
	// slice when present — presence alone marks the file as an index,
	// per spec §3.
	Contents *[]string
	Audience *[]string
	// Attachments holds on-disk attachment paths; the CRDT layer enriches
	// these into crdt.BinaryRef records (hash, mime, source).
	Attachments *[]string
	Extra       []ExtraField
	Body        string
}

// Parse splits raw file content into frontmatter and body. Both CRLF and
// LF line endings are accepted (spec §6); a file with no frontmatter
// block is returned with all fields empty and Body set to raw.
func Parse(raw string) (*Document, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	if !strings.HasPrefix(raw, delim+"\n") && raw != delim {
		return &Document{Body: raw}, nil
	}

	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || lines[0] != delim {
		return &Document{Body: raw}, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if lines[i] == delim {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("frontmatter: unterminated %q block", delim)
	}

	yamlBlock := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	doc := &Document{Body: body}
	if strings.TrimSpace(yamlBlock) == "" {
		return doc, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(yamlBlock), &root); err != nil {
		return nil, fmt.Errorf("frontmatter: parse yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return doc, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter: expected a mapping, got kind %d", mapping.Kind)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode := mapping.Content[i]
		valNode := mapping.Content[i+1]
		key := keyNode.Value

		switch key {
		case "title":
			var v string
			if err := valNode.Decode(&v); err != nil {
				return nil, fmt.Errorf("frontmatter: title: %w", err)
			}
			doc.Title = &v
		case "description":
			var v string
			if err := valNode.Decode(&v); err != nil {
				return nil, fmt.Errorf("frontmatter: description: %w", err)
			}
			doc.Description = &v
		case "part_of":
			var v string
			if err := valNode.Decode(&v); err != nil {
				return nil, fmt.Errorf("frontmatter: part_of: %w", err)
			}
			doc.PartOf = &v
		case "contents":
			v, err := decodeStringList(valNode)
			if err != nil {
				return nil, fmt.Errorf("frontmatter: contents: %w", err)
			}
			doc.Contents = &v
		case "audience":
			v, err := decodeStringList(valNode)
			if err != nil {
				return nil, fmt.Errorf("frontmatter: audience: %w", err)
			}
			doc.Audience = &v
		case "attachments":
			v, err := decodeStringList(valNode)
			if err != nil {
				return nil, fmt.Errorf("frontmatter: attachments: %w", err)
			}
			doc.Attachments = &v
		default:
			doc.Extra = append(doc.Extra, ExtraField{Key: key, Value: valNode})
		}
	}

	return doc, nil
}

func decodeStringList(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a sequence, got kind %d", n.Kind)
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		var s string
		if err := item.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Render serializes the document back to "---\n<yaml>\n---\n<body>",
// preserving Extra key order, and always using LF line endings (spec §6).
func Render(doc *Document) (string, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	add := func(key string, node *yaml.Node) {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		mapping.Content = append(mapping.Content, keyNode, node)
	}
	scalar := func(v string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	}
	sequence := func(items []string) *yaml.Node {
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range items {
			n.Content = append(n.Content, scalar(it))
		}
		return n
	}

	if doc.Title != nil {
		add("title", scalar(*doc.Title))
	}
	if doc.Description != nil {
		add("description", scalar(*doc.Description))
	}
	if doc.PartOf != nil {
		add("part_of", scalar(*doc.PartOf))
	}
	if doc.Contents != nil {
		add("contents", sequence(*doc.Contents))
	}
	if doc.Audience != nil {
		add("audience", sequence(*doc.Audience))
	}
	if doc.Attachments != nil {
		add("attachments", sequence(*doc.Attachments))
	}
	for _, ef := range doc.Extra {
		add(ef.Key, ef.Value)
	}

	if len(mapping.Content) == 0 {
		return normalizeEOL(doc.Body), nil
	}

	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return "", fmt.Errorf("frontmatter: render yaml: %w", err)
	}
	_ = enc.Close()

	yamlText := strings.TrimRight(buf.String(), "\n")

	var out strings.Builder
	out.WriteString(delim)
	out.WriteString("\n")
	out.WriteString(yamlText)
	out.WriteString("\n")
	out.WriteString(delim)
	out.WriteString("\n")
	out.WriteString(normalizeEOL(doc.Body))

	return out.String(), nil
}

func normalizeEOL(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// IsIndex reports whether the document declares a (possibly empty)
// contents list, per spec's GLOSSARY definition of Index.
func (d *Document) IsIndex() bool {
	return d.Contents != nil
}

// IsRoot reports whether the document is an index with no part_of.
func (d *Document) IsRoot() bool {
	return d.IsIndex() && d.PartOf == nil
}
