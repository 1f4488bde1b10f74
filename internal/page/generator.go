package page

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/showshelf/showshelf/internal/config"
	"github.com/showshelf/showshelf/internal/store"
	"github.com/showshelf/showshelf/pkg/file"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

//go:embed page.html.tmpl
var defaultTemplate string

// placeholderPoster is an inline SVG shown for records whose poster was never
// fetched, so a missing image never breaks the offline page.
const placeholderPoster = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHdpZHRoPSIyMDAiIGhlaWdodD0iMzAwIj48cmVjdCB3aWR0aD0iMTAwJSIgaGVpZ2h0PSIxMDAlIiBmaWxsPSIjMzMzIi8+PHRleHQgeD0iNTAlIiB5PSI1MCUiIGZpbGw9IiM5OTkiIGZvbnQtZmFtaWx5PSJzYW5zLXNlcmlmIiBmb250LXNpemU9IjE2IiB0ZXh0LWFuY2hvcj0ibWlkZGxlIj5ubyBwb3N0ZXI8L3RleHQ+PC9zdmc+"

const uncategorizedLabel = "Uncategorized"

// Generator renders the whole shelf into one self-contained HTML document.
// Every poster is embedded as a data URI; the output references nothing on
// the network or the filesystem.
type Generator struct {
	cfg      config.PageConfig
	collator *collate.Collator
}

func NewGenerator(cfg config.PageConfig) *Generator {
	return &Generator{
		cfg:      cfg,
		collator: collate.New(language.English, collate.IgnoreCase),
	}
}

type pageData struct {
	GeneratedAt string
	Theme       config.Theme
	Groups      []categoryGroup
	Total       int
}

type categoryGroup struct {
	Name   string
	Anchor string
	Shows  []showView
}

type showView struct {
	Title        string
	Year         int
	KindLabel    string
	Status       string
	Seasons      int
	Episodes     int
	Genres       string
	Overview     string
	RTScore      string
	PersonalLink string
	// Poster is a data URI; typed as template.URL so html/template does not
	// reject the data: scheme.
	Poster template.URL
}

// Generate renders records into the configured output file. The write is
// atomic: the page lands under a temporary name first and is renamed into
// place, so a failed render never leaves a partial file behind.
func (g *Generator) Generate(records []store.ShowRecord, settings config.Settings) error {
	html, err := g.render(records, settings, time.Now())
	if err != nil {
		return err
	}

	outPath := settings.OutputFile
	if outPath == "" {
		outPath = g.cfg.OutputFile
	}
	if err := file.EnsureDir(filepath.Dir(outPath)); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".shelf-*.html")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(html); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace output: %w", err)
	}
	return nil
}

func (g *Generator) render(records []store.ShowRecord, settings config.Settings, at time.Time) ([]byte, error) {
	tmpl, err := g.loadTemplate()
	if err != nil {
		return nil, err
	}

	data := pageData{
		GeneratedAt: at.UTC().Format("2006-01-02 15:04 MST"),
		Theme:       settings.Theme,
		Groups:      g.group(records, settings.Categories),
		Total:       len(records),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

// loadTemplate uses the configured override file when set, otherwise the
// embedded default. A missing override is fatal to generation.
func (g *Generator) loadTemplate() (*template.Template, error) {
	text := defaultTemplate
	if g.cfg.TemplateFile != "" {
		content, err := os.ReadFile(g.cfg.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", g.cfg.TemplateFile, err)
		}
		text = string(content)
	}
	tmpl, err := template.New("page").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tmpl, nil
}

// group buckets records by category. Categories from settings keep their
// configured order; any others follow alphabetically, with uncategorized
// records last.
func (g *Generator) group(records []store.ShowRecord, configured []string) []categoryGroup {
	buckets := make(map[string][]showView)
	for _, rec := range records {
		name := rec.Category
		if name == "" {
			name = uncategorizedLabel
		}
		buckets[name] = append(buckets[name], viewOf(rec))
	}

	names := make([]string, 0, len(buckets))
	seen := make(map[string]bool)
	for _, name := range configured {
		if _, ok := buckets[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	extra := make([]string, 0)
	for name := range buckets {
		if !seen[name] && name != uncategorizedLabel {
			extra = append(extra, name)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		return g.collator.CompareString(extra[i], extra[j]) < 0
	})
	names = append(names, extra...)
	if _, ok := buckets[uncategorizedLabel]; ok && !seen[uncategorizedLabel] {
		names = append(names, uncategorizedLabel)
	}

	groups := make([]categoryGroup, 0, len(names))
	for _, name := range names {
		shows := buckets[name]
		sort.SliceStable(shows, func(i, j int) bool {
			return g.collator.CompareString(shows[i].Title, shows[j].Title) < 0
		})
		groups = append(groups, categoryGroup{
			Name:   name,
			Anchor: anchorOf(name),
			Shows:  shows,
		})
	}
	return groups
}

func viewOf(rec store.ShowRecord) showView {
	poster := rec.PosterData
	if poster == "" {
		poster = placeholderPoster
	}
	kindLabel := "Movie"
	if rec.Kind == store.MediaTV {
		kindLabel = "TV"
	}
	return showView{
		Title:        rec.Title,
		Year:         rec.Year,
		KindLabel:    kindLabel,
		Status:       rec.Status,
		Seasons:      rec.Seasons,
		Episodes:     rec.Episodes,
		Genres:       rec.Genres,
		Overview:     rec.Overview,
		RTScore:      rec.RTScore,
		PersonalLink: rec.PersonalLink,
		Poster:       template.URL(poster),
	}
}

func anchorOf(name string) string {
	anchor := file.SafeName(strings.ToLower(name))
	if anchor == "" {
		anchor = "category"
	}
	return "cat-" + anchor
}
