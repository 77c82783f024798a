package markdown

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

const (
	defaultCacheTTL     = time.Hour
	defaultCacheCleanup = 10 * time.Minute
)

// Renderer turns entry markdown into HTML. Raw HTML in the source is shown
// as text, never passed through, and single newlines become line breaks.
type Renderer struct {
	markdown goldmark.Markdown
	cache    *cache.Cache
}

func NewRenderer() *Renderer {
	return NewRendererWithCache(defaultCacheTTL, defaultCacheCleanup)
}

func NewRendererWithCache(ttl time.Duration, cleanup time.Duration) *Renderer {
	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				renderer.WithNodeRenderers(util.Prioritized(escapedHTMLRenderer{}, 100)),
			),
		),
		cache: cache.New(ttl, cleanup),
	}
}

func (r *Renderer) Render(source string) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := r.markdown.Convert([]byte(source), &buffer); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buffer.String()), nil
}

// RenderEntry renders an entry body, reusing the cached HTML while the
// entry's updated_at is unchanged.
func (r *Renderer) RenderEntry(entryID uint, updatedAt time.Time, source string) (template.HTML, error) {
	key := fmt.Sprintf("%d:%d", entryID, updatedAt.UnixNano())
	if cached, ok := r.cache.Get(key); ok {
		if rendered, ok := cached.(template.HTML); ok {
			return rendered, nil
		}
	}

	rendered, err := r.Render(source)
	if err != nil {
		return "", err
	}
	r.cache.SetDefault(key, rendered)
	return rendered, nil
}

func (r *Renderer) CachedCount() int {
	return r.cache.ItemCount()
}

type escapedHTMLRenderer struct{}

func (escapedHTMLRenderer) RegisterFuncs(registerer renderer.NodeRendererFuncRegisterer) {
	registerer.Register(ast.KindRawHTML, renderEscapedRawHTML)
	registerer.Register(ast.KindHTMLBlock, renderEscapedHTMLBlock)
}

func renderEscapedRawHTML(writer util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	raw := node.(*ast.RawHTML)
	for index := 0; index < raw.Segments.Len(); index++ {
		segment := raw.Segments.At(index)
		_, _ = writer.Write(util.EscapeHTML(segment.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

func renderEscapedHTMLBlock(writer util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	block := node.(*ast.HTMLBlock)
	if !entering {
		_, _ = writer.WriteString("</p>\n")
		return ast.WalkContinue, nil
	}

	_, _ = writer.WriteString("<p>")
	lines := block.Lines()
	for index := 0; index < lines.Len(); index++ {
		line := lines.At(index)
		_, _ = writer.Write(util.EscapeHTML(line.Value(source)))
	}
	if block.HasClosure() {
		_, _ = writer.Write(util.EscapeHTML(block.ClosureLine.Value(source)))
	}
	return ast.WalkContinue, nil
}
