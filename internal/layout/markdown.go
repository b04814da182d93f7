package layout

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ModelName is reported in the markdown analysis details.
const ModelName = "DocLayout-YOLO (DocStructBench)"

// EmptyMarkdown is returned when there are no regions to describe.
const EmptyMarkdown = "# Document Analysis Results\n\nNo layout regions detected."

// SortByTop returns a copy of regions ordered by ascending top edge. Regions on
// the same line keep their relative order, so multi-column pages interleave.
func SortByTop(regions []Region) []Region {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top() < sorted[j].Top()
	})
	return sorted
}

// DisplayName turns a table name such as "figure_caption" into "Figure Caption".
func DisplayName(name string) string {
	// cases.Caser keeps state between calls and is not safe to share.
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// Markdown renders regions as a markdown report. It is a pure function of its
// arguments: identical inputs produce identical bytes.
func Markdown(regions []Region, elapsedMs float64) string {
	if len(regions) == 0 {
		return EmptyMarkdown
	}

	sorted := SortByTop(regions)
	display := DisplayName

	var sb strings.Builder
	sb.WriteString("# Document Layout Analysis\n\n")

	writeSummary(&sb, sorted, display)

	sb.WriteString("## Document Structure\n\n")
	for i, r := range sorted {
		writeRegion(&sb, i, r, display)
	}

	sb.WriteString("---\n\n")
	sb.WriteString("## Analysis Details\n\n")
	fmt.Fprintf(&sb, "- **Total Regions**: %d\n", len(regions))
	fmt.Fprintf(&sb, "- **Processing Time**: %dms\n", int64(math.Round(elapsedMs)))
	fmt.Fprintf(&sb, "- **Analysis Model**: %s\n", ModelName)

	names := make([]string, NumCategories)
	for i, n := range categoryNames {
		names[i] = display(n)
	}
	fmt.Fprintf(&sb, "- **Supported Categories**: %s\n", strings.Join(names, ", "))

	return sb.String()
}

func writeSummary(sb *strings.Builder, regions []Region, display func(string) string) {
	counts := make(map[Category]int)
	order := make([]Category, 0)
	for _, r := range regions {
		if _, seen := counts[r.Category]; !seen {
			order = append(order, r.Category)
		}
		counts[r.Category]++
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	sb.WriteString("## Document Summary\n\n")
	for _, c := range order {
		fmt.Fprintf(sb, "- **%s**: %d\n", display(c.String()), counts[c])
	}
	sb.WriteString("\n")
}

func writeRegion(sb *strings.Builder, i int, r Region, display func(string) string) {
	conf := int(r.Score * 100)
	tl, br := r.Corners[0], r.Corners[2]

	switch r.Category {
	case Title:
		if r.HasOCRText && r.OCRText != "" {
			fmt.Fprintf(sb, "### %s\n\n", r.OCRText)
			return
		}
		fmt.Fprintf(sb, "### %s %d\n\n", display(r.CategoryName), i+1)
		return

	case PlainText:
		fmt.Fprintf(sb, "**Text Region** (Confidence: %d%%)\n\n", conf)
		fmt.Fprintf(sb, "> Location: (%d, %d) → (%d, %d)\n\n", tl.X, tl.Y, br.X, br.Y)

	case Figure:
		fmt.Fprintf(sb, "**Figure/Image** (Confidence: %d%%)\n\n", conf)
		fmt.Fprintf(sb, "![Figure](image://%d)\n\n", i)
		fmt.Fprintf(sb, "*Figure location: (%d, %d)*\n\n", tl.X, tl.Y)

	case Table:
		fmt.Fprintf(sb, "**Table** (Confidence: %d%%)\n\n", conf)
		sb.WriteString("| Column 1 | Column 2 | Column 3 |\n")
		sb.WriteString("|----------|----------|----------|\n")
		sb.WriteString("| Data 1   | Data 2   | Data 3   |\n")
		sb.WriteString("| Data 4   | Data 5   | Data 6   |\n\n")

	default:
		fmt.Fprintf(sb, "**%s** (Confidence: %d%%)\n\n", display(r.CategoryName), conf)
	}

	if r.HasOCRText && r.OCRText != "" {
		fmt.Fprintf(sb, "%s\n\n", r.OCRText)
	}
}
