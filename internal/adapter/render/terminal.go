package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
)

var _ port.Renderer = (*TerminalRenderer)(nil)

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6B7280")
	destructive = lipgloss.Color("#E53935")
	warning     = lipgloss.Color("#FFC107")
)

type terminalStyles struct {
	card       lipgloss.Style
	featured   lipgloss.Style
	outOfStock lipgloss.Style
	title      lipgloss.Style
	muted      lipgloss.Style
	price      lipgloss.Style
	strike     lipgloss.Style
	discount   lipgloss.Style
	err        lipgloss.Style
	summary    lipgloss.Style
}

func newTerminalStyles(r *lipgloss.Renderer) terminalStyles {
	card := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(muted).
		Padding(0, 1).
		MarginBottom(1)

	return terminalStyles{
		card:       card,
		featured:   card.BorderForeground(warning),
		outOfStock: card.Faint(true),
		title:      r.NewStyle().Bold(true),
		muted:      r.NewStyle().Foreground(muted),
		price:      r.NewStyle().Bold(true).Foreground(accent),
		strike:     r.NewStyle().Strikethrough(true).Foreground(muted),
		discount:   r.NewStyle().Bold(true).Foreground(destructive),
		err:        r.NewStyle().Bold(true).Foreground(destructive),
		summary:    r.NewStyle().Italic(true),
	}
}

// A TerminalRenderer prints views as a column of bordered cards.
type TerminalRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	styles terminalStyles
}

func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{
		w:      w,
		styles: newTerminalStyles(lipgloss.NewRenderer(w)),
	}
}

func (r *TerminalRenderer) Draw(v domain.View) error {
	var b strings.Builder
	b.WriteString(r.styles.summary.Render(Summary(v)))
	b.WriteString("  ")
	b.WriteString(r.styles.muted.Render(FilterStatsText(v.Stats)))
	b.WriteString("\n\n")

	if v.Empty() {
		b.WriteString(r.styles.muted.Render(EmptyStateText))
		b.WriteString("\n")
		return r.write(b.String())
	}

	for _, c := range Cards(v) {
		b.WriteString(r.card(c))
		b.WriteString("\n")
	}
	return r.write(b.String())
}

func (r *TerminalRenderer) card(c Card) string {
	var badges []string
	if c.New {
		badges = append(badges, NewBadge)
	}
	if c.Featured {
		badges = append(badges, FeaturedBadge)
	}
	if c.Discount > 0 {
		badges = append(badges, r.styles.discount.Render(fmt.Sprintf("-%d%%", c.Discount)))
	}

	price := r.styles.price.Render(c.Price)
	if c.OriginalPrice != "" {
		price = r.styles.strike.Render(c.OriginalPrice) + " " + price
	}

	lines := []string{
		c.CategoryIcon + " " + r.styles.title.Render(c.Title),
	}
	if len(badges) > 0 {
		lines = append(lines, strings.Join(badges, " "))
	}
	if c.Description != "" {
		lines = append(lines, r.styles.muted.Render(c.Description))
	}
	lines = append(lines,
		c.Stars+" "+r.styles.muted.Render(c.RatingText),
		price+"  "+c.StockText,
	)

	style := r.styles.card
	switch {
	case c.OutOfStock:
		style = r.styles.outOfStock
	case c.Featured:
		style = r.styles.featured
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (r *TerminalRenderer) DrawLoading() error {
	return r.write(r.styles.muted.Render(LoadingText) + "\n")
}

func (r *TerminalRenderer) DrawError(message string) error {
	return r.write(r.styles.err.Render(message) + "\n")
}

func (r *TerminalRenderer) write(s string) error {
	const op = "TerminalRenderer.write"

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := io.WriteString(r.w, s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
