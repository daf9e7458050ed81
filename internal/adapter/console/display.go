// Package console renders the periodically refreshed order table on the
// operator's terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/currency"
)

const (
	ansiReset  = "\033[0m"
	ansiCyan   = "\033[36m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiWhite  = "\033[37m"
	ansiClear  = "\033[2J\033[H"
)

type Display struct {
	out   io.Writer
	color bool
	clear bool
}

// New builds a display writing to stdout with colors and screen clearing.
func New() *Display {
	return &Display{out: os.Stdout, color: true, clear: true}
}

// NewWriter builds a plain display for tests and log capture.
func NewWriter(out io.Writer) *Display {
	return &Display{out: out}
}

// Render prints the order table, most recent listing first as returned by
// the order source.
func (d *Display) Render(orders []domain.Order) {
	if d.clear {
		fmt.Fprint(d.out, ansiClear)
	}

	fmt.Fprintf(d.out, "\n%sRecent Orders:%s\n", d.paint(ansiCyan), d.paint(ansiReset))
	fmt.Fprintf(d.out, "%-15s %-30s %-14s %-16s %-20s\n", "Order ID", "Product", "Price", "Status", "Date")
	fmt.Fprintln(d.out, strings.Repeat("-", 98))

	for _, order := range orders {
		name := order.FullProductName()
		if runes := []rune(name); len(runes) > 28 {
			name = string(runes[:28])
		}

		fmt.Fprintf(d.out, "%s%-15s %-30s %-14s %-16s %-20s%s\n",
			d.paint(statusColor(order.Status)),
			order.ID,
			name,
			currency.Rupiah(order.Price),
			order.Status,
			order.CreatedAt.Format("2006-01-02 15:04:05"),
			d.paint(ansiReset),
		)
	}
}

func (d *Display) paint(code string) string {
	if !d.color {
		return ""
	}
	return code
}

func statusColor(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusDelivered:
		return ansiGreen
	case domain.OrderStatusRequireProcess:
		return ansiYellow
	}
	return ansiWhite
}
