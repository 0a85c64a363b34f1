package view

import (
	"io"
	"log"
	"strconv"
	"strings"
)

// Console prints the latest voltage reading and the log count, one line per
// update, e.g. "Voltage [0.1 0.2] Log Count: 12".
type Console struct {
	logger *log.Logger
	buf    strings.Builder
}

// NewConsole creates a console view writing to w without log prefixes.
func NewConsole(w io.Writer) *Console {
	return &Console{logger: log.New(w, "", 0)}
}

func (c *Console) Render(u Update) {
	c.buf.Reset()
	c.buf.WriteString("Voltage [")
	for i, v := range u.Voltage {
		if i > 0 {
			c.buf.WriteByte(' ')
		}
		c.buf.WriteString(strconv.FormatFloat(v, 'g', 6, 64))
	}
	c.buf.WriteString("] Log Count: ")
	c.buf.WriteString(strconv.Itoa(u.Cycle + 1))
	c.logger.Print(c.buf.String())
}
