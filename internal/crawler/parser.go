package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/webswarm/internal/classifier"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
)

// resourceRels are the <link rel> values that reference a fetchable resource.
var resourceRels = map[string]struct{}{
	"stylesheet":       {},
	"icon":             {},
	"shortcut":         {},
	"apple-touch-icon": {},
	"preload":          {},
	"modulepreload":    {},
	"manifest":         {},
}

// Parser extracts links and resource references from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains everything the crawler needs from one HTML page.
// All URLs are absolute with fragments removed; hrefs with non-fetchable
// schemes are dropped.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Links contains resolved anchor hrefs in document order.
	Links []*url.URL

	// Resources contains resolved src/href values of resource-bearing tags
	// (img, script, stylesheet and icon links, media sources).
	Resources []*url.URL

	// Forms contains information about HTML forms.
	Forms []FormInfo

	// Refs holds every link, resource and form above in document order.
	Refs []Ref
}

// RefKind tells what kind of element a Ref came from.
type RefKind int

const (
	// RefLink is an <a> or <area> href.
	RefLink RefKind = iota
	// RefResource is a src or href the browser fetches as a subresource.
	RefResource
	// RefForm is a form; Form holds its details.
	RefForm
)

// Ref is one reference found in a document.
type Ref struct {
	Kind RefKind
	// URL is the resolved target. For forms it is the action and may be nil.
	URL  *url.URL
	Form FormInfo
}

// FormInfo contains information about an HTML form.
type FormInfo struct {
	// Action is the resolved form action URL. Nil when it could not be resolved.
	Action *url.URL

	// Method is the HTTP method (GET, POST).
	Method string

	// Fields contains form field names and types.
	Fields []FormField
}

// FormField represents a form input field.
type FormField struct {
	// Name is the field name attribute.
	Name string

	// Type is the input type (text, search, hidden, etc.).
	Type string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts links, resources and forms.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:     make([]*url.URL, 0),
		Resources: make([]*url.URL, 0),
		Forms:     make([]FormInfo, 0),
		Refs:      make([]Ref, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "base":
		// <base href> changes how the rest of the document resolves.
		if u, ok := p.resolve(getAttr(n, "href")); ok {
			p.baseURL = u
		}

	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a", "area":
		if u, ok := p.resolve(getAttr(n, "href")); ok {
			result.Links = append(result.Links, u)
			result.Refs = append(result.Refs, Ref{Kind: RefLink, URL: u})
		}

	case "img", "script", "source", "video", "audio", "track", "embed":
		p.addResource(getAttr(n, "src"), result)
		if n.Data == "video" {
			p.addResource(getAttr(n, "poster"), result)
		}

	case "link":
		if !isResourceLink(getAttr(n, "rel")) {
			return
		}
		p.addResource(getAttr(n, "href"), result)

	case "form":
		form := FormInfo{
			Method: strings.ToUpper(strings.TrimSpace(getAttr(n, "method"))),
			Fields: make([]FormField, 0),
		}
		if form.Method == "" {
			form.Method = "GET"
		}
		action := getAttr(n, "action")
		if strings.TrimSpace(action) == "" {
			// An empty action submits to the current document.
			action = p.baseURL.String()
		}
		if u, ok := p.resolve(action); ok {
			form.Action = u
		}
		p.extractFormFields(n, &form)
		result.Forms = append(result.Forms, form)
		result.Refs = append(result.Refs, Ref{Kind: RefForm, URL: form.Action, Form: form})
	}
}

// addResource records a subresource reference if href resolves.
func (p *Parser) addResource(href string, result *ParseResult) {
	if u, ok := p.resolve(href); ok {
		result.Resources = append(result.Resources, u)
		result.Refs = append(result.Refs, Ref{Kind: RefResource, URL: u})
	}
}

// isResourceLink reports whether a <link rel> value references a resource
// the browser would fetch.
func isResourceLink(rel string) bool {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if _, ok := resourceRels[r]; ok {
			return true
		}
	}
	return false
}

// extractFormFields recursively extracts form fields from a form element.
func (p *Parser) extractFormFields(n *html.Node, form *FormInfo) {
	if n.Type == html.ElementNode && (n.Data == htmlElementInput || n.Data == htmlElementSelect || n.Data == htmlElementTextarea) {
		field := FormField{
			Name: getAttr(n, "name"),
			Type: strings.ToLower(getAttr(n, "type")),
		}
		if field.Type == "" {
			switch n.Data {
			case htmlElementTextarea:
				field.Type = htmlElementTextarea
			case htmlElementSelect:
				field.Type = htmlElementSelect
			default:
				field.Type = "text"
			}
		}
		if field.Name != "" {
			form.Fields = append(form.Fields, field)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.extractFormFields(c, form)
	}
}

// resolve resolves href against the current base URL.
func (p *Parser) resolve(href string) (*url.URL, bool) {
	return classifier.Resolve(href, p.baseURL.String())
}

// IsSearchForm reports whether the form is a GET form with a free-text
// field, which is how most sites expose their search box.
func (f FormInfo) IsSearchForm() bool {
	if f.Method != "GET" || f.Action == nil {
		return false
	}
	for _, field := range f.Fields {
		if field.Type == "search" || field.Type == "text" {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
