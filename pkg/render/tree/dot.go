package tree

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/deckreel/pkg/render"
	"github.com/matzehuels/deckreel/pkg/resource"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// Options configures hierarchy diagram rendering.
type Options struct {
	// Detailed adds type, size and state to node labels.
	Detailed bool
	// Collapse folds same-type leaf siblings into one summary node.
	Collapse bool
	// MaxDepth limits the rendered depth below the root; 0 is unlimited.
	MaxDepth int
}

// ToDOT converts a snapshot tree to Graphviz DOT.
func ToDOT(s *snapshot.Snapshot, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.2;\n")
	buf.WriteString("\n")

	w := &writer{buf: &buf, opts: opts, palette: render.DefaultPalette()}
	w.node(s)
	w.walk(s, 0)

	buf.WriteString("}\n")
	return buf.String()
}

type writer struct {
	buf     *bytes.Buffer
	opts    Options
	palette *render.Palette
}

func (w *writer) walk(s *snapshot.Snapshot, depth int) {
	if w.opts.MaxDepth > 0 && depth >= w.opts.MaxDepth {
		return
	}
	for _, group := range w.groups(s.Children) {
		if len(group) > 1 {
			id := fmt.Sprintf("%s/%s*", s.Name, group[0].Type)
			fmt.Fprintf(w.buf, "  %q [label=%q, fillcolor=%q, style=\"rounded,filled,dashed\"];\n",
				id, summarize(group), w.fill(group[0]))
			fmt.Fprintf(w.buf, "  %q -> %q;\n", s.Name, id)
			continue
		}
		c := group[0]
		w.node(c)
		fmt.Fprintf(w.buf, "  %q -> %q;\n", s.Name, c.Name)
		w.walk(c, depth+1)
	}
}

// groups splits children into runs to draw. Without Collapse every child is
// its own run.
func (w *writer) groups(children []*snapshot.Snapshot) [][]*snapshot.Snapshot {
	var out [][]*snapshot.Snapshot
	for _, c := range children {
		n := len(out)
		if w.opts.Collapse && n > 0 && len(c.Children) == 0 {
			last := out[n-1]
			if len(last[0].Children) == 0 && last[0].Type == c.Type {
				out[n-1] = append(last, c)
				continue
			}
		}
		out = append(out, []*snapshot.Snapshot{c})
	}
	return out
}

func (w *writer) node(s *snapshot.Snapshot) {
	attrs := []string{fmt.Sprintf("label=%q", w.label(s))}
	if fill := w.fill(s); fill != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	switch s.Type {
	case resource.TypeCarrier, resource.TypeResourceHolder:
		attrs = append(attrs, "style=\"rounded,dashed\"")
	case resource.TypeDeck, resource.TypeTipRack, resource.TypePlate:
		attrs = append(attrs, "fontcolor=white")
	}
	fmt.Fprintf(w.buf, "  %q [%s];\n", s.Name, strings.Join(attrs, ", "))
}

func (w *writer) label(s *snapshot.Snapshot) string {
	if !w.opts.Detailed {
		return s.Name
	}
	parts := []string{
		string(s.Type),
		fmt.Sprintf("%g × %g × %g", s.SizeX, s.SizeY, s.SizeZ),
	}
	for _, k := range slices.Sorted(maps.Keys(s.State)) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatState(s.State[k])))
	}
	return s.Name + "\n" + strings.Join(parts, "\n")
}

func (w *writer) fill(s *snapshot.Snapshot) string {
	var c color.Color
	switch s.Type {
	case resource.TypeDeck, resource.TypeTipRack, resource.TypePlate, resource.TypeTrough:
		c = w.palette.Container(s.Type)
	case resource.TypeTipSpot:
		if hasTip, _ := s.State[resource.StateHasTip].(bool); hasTip {
			c = w.palette.Tip
		}
	case resource.TypeWell:
		if ls := liquidLabels(s); len(ls) > 0 {
			c = w.palette.Compound(ls[0])
		}
	}
	if c == nil {
		return ""
	}
	cc, ok := colorful.MakeColor(c)
	if !ok {
		return ""
	}
	return cc.Hex()
}

func liquidLabels(s *snapshot.Snapshot) []string {
	entries, _ := s.State[resource.StateLiquids].([]any)
	var labels []string
	for _, e := range entries {
		if pair, ok := e.([]any); ok && len(pair) == 2 {
			if l, ok := pair[0].(string); ok {
				labels = append(labels, l)
			}
		}
	}
	return labels
}

func summarize(group []*snapshot.Snapshot) string {
	first := group[0]
	label := fmt.Sprintf("%d × %s", len(group), first.Type)
	switch first.Type {
	case resource.TypeTipSpot:
		n := 0
		for _, s := range group {
			if hasTip, _ := s.State[resource.StateHasTip].(bool); hasTip {
				n++
			}
		}
		label += fmt.Sprintf("\n(%d with tip)", n)
	case resource.TypeWell, resource.TypeTrough:
		n := 0
		for _, s := range group {
			if len(liquidLabels(s)) > 0 {
				n++
			}
		}
		label += fmt.Sprintf("\n(%d filled)", n)
	}
	return label
}

func formatState(v any) string {
	entries, ok := v.([]any)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if pair, ok := e.([]any); ok && len(pair) == 2 {
			parts = append(parts, fmt.Sprintf("%v %v", pair[0], pair[1]))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := renderDOT(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return renderDOT(ctx, dot, graphviz.PNG)
}

func renderDOT(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
