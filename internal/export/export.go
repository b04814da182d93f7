// Package export writes a layout analysis to disk: the markdown report, an
// HTML preview of it, and PNG crops of every figure and table.
//
// Output layout for base name "document":
//
//	<dir>/document.md
//	<dir>/document.html
//	<dir>/figures/figure_1.png
//	<dir>/tables/table_1.png
//
// Crops are numbered in reading order (top to bottom). Figure placeholders in
// the markdown are rewritten to point at the saved crops, so the report and
// the preview open with their images.
package export

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/doclayout-mcp/internal/imaging"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
)

// DefaultBaseName names the report files when none is given.
const DefaultBaseName = "document"

const (
	figuresDir = "figures"
	tablesDir  = "tables"
)

// Options controls where and how the export is written.
type Options struct {
	// Dir is created if it does not exist.
	Dir string
	// BaseName is the file name of the report without extension. It must not
	// contain a path separator.
	BaseName string
	// Margin is the number of extra pixels kept around each crop.
	Margin int
}

// Result lists what was written.
type Result struct {
	MarkdownPath string   `json:"markdown_path"`
	HTMLPath     string   `json:"html_path"`
	ResourceDir  string   `json:"resource_dir"`
	Figures      []string `json:"figures"`
	Tables       []string `json:"tables"`
	FigureCount  int      `json:"figure_count"`
	TableCount   int      `json:"table_count"`
	TotalRegions int      `json:"total_regions"`
	Markdown     string   `json:"markdown"`
}

func (o Options) validate() (Options, error) {
	if o.Dir == "" {
		return o, errors.New("export directory is empty")
	}
	if o.BaseName == "" {
		o.BaseName = DefaultBaseName
	}
	if filepath.Base(o.BaseName) != o.BaseName || o.BaseName == "." || o.BaseName == ".." {
		return o, fmt.Errorf("invalid base name %q", o.BaseName)
	}
	if o.Margin < 0 {
		return o, fmt.Errorf("negative crop margin %d", o.Margin)
	}
	return o, nil
}

// Write saves the report for regions found on img. markdown must be the
// report produced by layout.Markdown for the same regions. img may be nil
// when no figure or table is present.
func Write(img image.Image, regions []layout.Region, markdown string, opts Options) (*Result, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("export directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	res := &Result{
		ResourceDir:  dir,
		Figures:      []string{},
		Tables:       []string{},
		TotalRegions: len(regions),
	}

	// Same order as layout.Markdown, so index i matches image://i.
	for i, r := range layout.SortByTop(regions) {
		var sub, name string
		switch r.Category {
		case layout.Figure:
			res.FigureCount++
			sub, name = figuresDir, fmt.Sprintf("figure_%d.png", res.FigureCount)
		case layout.Table:
			res.TableCount++
			sub, name = tablesDir, fmt.Sprintf("table_%d.png", res.TableCount)
		default:
			continue
		}

		path, err := saveCrop(img, r, opts.Margin, filepath.Join(dir, sub), name)
		if err != nil {
			return nil, err
		}
		rel := sub + "/" + name
		if r.Category == layout.Figure {
			res.Figures = append(res.Figures, path)
			markdown = strings.Replace(markdown, fmt.Sprintf("(image://%d)", i), "("+rel+")", 1)
		} else {
			res.Tables = append(res.Tables, path)
		}
	}

	res.Markdown = markdown
	res.MarkdownPath = filepath.Join(dir, opts.BaseName+".md")
	if err := os.WriteFile(res.MarkdownPath, []byte(markdown), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write markdown: %w", err)
	}
	res.HTMLPath = filepath.Join(dir, opts.BaseName+".html")
	if err := os.WriteFile(res.HTMLPath, []byte(Preview(markdown)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write HTML preview: %w", err)
	}
	return res, nil
}

func saveCrop(img image.Image, r layout.Region, margin int, dir, name string) (string, error) {
	if img == nil {
		return "", fmt.Errorf("no page image to crop %s from", r.CategoryName)
	}
	crop, err := imaging.CropRegion(img, r, margin, 1.0)
	if err != nil {
		return "", fmt.Errorf("%s crop: %w", r.CategoryName, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := imaging.SavePNG(crop, path); err != nil {
		return "", err
	}
	return path, nil
}
