package campaign

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/harunnryd/sampark/pkg/errorsx"
	"golang.org/x/net/html"
)

const (
	minTextLen = 10
	minPageLen = 50
	// maxSourceBytes bounds fetched pages and decoded files.
	maxSourceBytes = 2 << 20
)

// SourcePayload is the union of the from-source payload shapes.
type SourcePayload struct {
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
}

// Loader extracts campaign text from a source.
type Loader struct {
	Client *http.Client
}

func NewLoader(timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{Client: &http.Client{Timeout: timeout}}
}

// Load dispatches on the source type.
func (l *Loader) Load(ctx context.Context, sourceType string, raw json.RawMessage) (string, error) {
	var p SourcePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return "", errorsx.Errorf(errorsx.ReasonValidation, "invalid payload: %v", err)
		}
	}
	switch sourceType {
	case SourceText:
		return LoadFromText(p.Text)
	case SourceURL:
		return l.LoadFromURL(ctx, p.URL)
	case SourceFile:
		return LoadFromFile(p.Name, p.Content)
	default:
		return "", errorsx.Validation("invalid source type")
	}
}

// LoadFromText accepts text that is at least 10 characters once trimmed.
func LoadFromText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minTextLen {
		return "", errorsx.New(errorsx.ReasonSourceLoad, "text too short")
	}
	return text, nil
}

// LoadFromURL fetches a page and returns its visible body text with
// whitespace collapsed.
func (l *Loader) LoadFromURL(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errorsx.Validation("url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errorsx.Errorf(errorsx.ReasonValidation, "invalid url: %v", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errorsx.Errorf(errorsx.ReasonSourceLoad, "fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", errorsx.Errorf(errorsx.ReasonSourceLoad, "fetch %s: status %d", rawURL, resp.StatusCode)
	}
	text, err := htmlText(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return "", errorsx.Errorf(errorsx.ReasonSourceLoad, "parse %s: %w", rawURL, err)
	}
	if len([]rune(text)) < minPageLen {
		return "", errorsx.New(errorsx.ReasonSourceLoad, "not enough readable content")
	}
	return text, nil
}

// LoadFromFile decodes a base64 upload. HTML files are reduced to their body
// text; anything else is taken as plain text.
func LoadFromFile(name, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errorsx.Validation("file content is required")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
	if err != nil {
		return "", errorsx.Errorf(errorsx.ReasonValidation, "file content is not base64: %v", err)
	}
	if len(data) > maxSourceBytes {
		return "", errorsx.New(errorsx.ReasonSourceLoad, "file too large")
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		text, err := htmlText(bytes.NewReader(data))
		if err != nil {
			return "", errorsx.Errorf(errorsx.ReasonSourceLoad, "parse %s: %w", name, err)
		}
		return LoadFromText(text)
	default:
		return LoadFromText(string(data))
	}
}

// htmlText returns the text content of the document body, skipping script
// and style elements.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
