package main

import (
	"bytes"
	"errors"
	"slices"
	"time"

	"github.com/b97tsk/twine"
)

// A handlerFactory builds the connection handler of a service.
type handlerFactory func(h *twine.Hub, s *Service) twine.Handler

var handlers = map[string]handlerFactory{
	"echo":    echo,
	"discard": discard,
	"qotd":    qotd,
	"chargen": chargen,
	"daytime": daytime,
	"chat":    chat,
}

const defaultQuote = "An apple a day keeps the doctor away."

// read returns whatever arrives next on c, giving up after the idle
// timeout of s, if any.
func read(h *twine.Hub, s *Service, c *twine.Conn) ([]byte, error) {
	if s.IdleTimeout.Duration == 0 {
		return c.ReadAvailable()
	}
	return twine.WithTimeout(h, s.IdleTimeout.Duration, c.ReadAvailable)
}

func readLine(h *twine.Hub, s *Service, c *twine.Conn) ([]byte, error) {
	if s.IdleTimeout.Duration == 0 {
		return c.ReadLine()
	}
	return twine.WithTimeout(h, s.IdleTimeout.Duration, c.ReadLine)
}

func echo(h *twine.Hub, s *Service) twine.Handler {
	return func(c *twine.Conn) error {
		for {
			p, err := read(h, s, c)
			if err != nil {
				return err
			}
			if _, err := c.Write(p); err != nil {
				return err
			}
		}
	}
}

func discard(h *twine.Hub, s *Service) twine.Handler {
	return func(c *twine.Conn) error {
		for {
			if _, err := read(h, s, c); err != nil {
				return err
			}
		}
	}
}

func qotd(h *twine.Hub, s *Service) twine.Handler {
	quotes := s.Quotes
	if len(quotes) == 0 {
		quotes = []string{defaultQuote}
	}
	next := 0
	return func(c *twine.Conn) error {
		quote := quotes[next%len(quotes)]
		next++
		return c.WriteLine([]byte(quote))
	}
}

const (
	chargenWidth = 72
	chargenFirst = ' '
	chargenLast  = '~'
)

// chargenLine returns line i of the rotating pattern of RFC 864.
func chargenLine(i int) []byte {
	const n = chargenLast - chargenFirst + 1
	line := make([]byte, chargenWidth, chargenWidth+2)
	for j := range line {
		line[j] = byte(chargenFirst + (i+j)%n)
	}
	return append(line, '\r', '\n')
}

// chargen streams until the peer goes away. Write suspends the fiber
// whenever the transport is above its high-water mark.
func chargen(h *twine.Hub, s *Service) twine.Handler {
	return func(c *twine.Conn) error {
		for i := 0; ; i++ {
			if _, err := c.Write(chargenLine(i)); err != nil {
				return err
			}
		}
	}
}

func daytime(h *twine.Hub, s *Service) twine.Handler {
	layout := s.Layout
	if layout == "" {
		layout = time.RFC1123
	}
	return func(c *twine.Conn) error {
		return c.WriteLine([]byte(h.Reactor().Now().Format(layout)))
	}
}

// room relays every line a member sends to all other members.
type room struct {
	members []*twine.Conn
}

func chat(h *twine.Hub, s *Service) twine.Handler {
	r := new(room)
	return func(c *twine.Conn) error {
		r.members = append(r.members, c)
		defer func() {
			r.members = slices.DeleteFunc(r.members, func(m *twine.Conn) bool { return m == c })
		}()

		for {
			line, err := readLine(h, s, c)
			if err != nil {
				return err
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			for _, m := range slices.Clone(r.members) {
				if m == c {
					continue
				}
				if err := m.WriteLine(line); err != nil && !errors.Is(err, twine.ErrConnectionClosed) {
					return err
				}
			}
		}
	}
}
