// Package extract turns raw regulation files into plain-text documents.
// Binary-format parsing is delegated to the pdf and goldmark libraries;
// everything downstream only sees models.Document.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"normativa-rag/internal/models"
)

// File extracts the text of a single document. The document id is the
// base filename, matching how citations name their sources.
func File(path string) (models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	doc := models.Document{ID: filepath.Base(path), Format: strings.TrimPrefix(ext, ".")}

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(path)
	case ".txt":
		text, err = extractText(path)
	case ".md":
		text, err = extractMarkdown(path)
	default:
		return doc, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return doc, err
	}
	doc.Text = text
	return doc, nil
}

// Dir extracts every supported file under rawDir in lexical order.
// Unsupported or unreadable files are skipped with a warning so one bad
// document does not block the run.
func Dir(rawDir string) ([]models.Document, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return nil, fmt.Errorf("reading raw dir %s: %w", rawDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []models.Document
	for _, name := range names {
		doc, err := File(filepath.Join(rawDir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(pageText))
	}
	return sb.String(), nil
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// extractMarkdown strips markdown syntax by walking the goldmark AST and
// keeping only text content, one block per line.
func extractMarkdown(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(source))

	var buf bytes.Buffer
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
