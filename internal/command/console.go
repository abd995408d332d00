package command

import (
	"errors"
	"strings"
)

// ErrBadLine is returned by ParseLine for lines without an author.
var ErrBadLine = errors.New("line must look like `author: message` or `author!: message`")

// ParseLine reads one console line, "alice: e give @bob 10". A trailing "!"
// on the author ("root!: ...") marks an administrator. Mentions are taken
// from the @words of the message, in order.
func ParseLine(line string) (Message, error) {
	author, content, ok := strings.Cut(line, ":")
	if !ok {
		return Message{}, ErrBadLine
	}
	author = strings.TrimSpace(author)
	privileged := strings.HasSuffix(author, "!")
	author = strings.TrimSuffix(author, "!")
	if author == "" || strings.ContainsAny(author, " \t@") {
		return Message{}, ErrBadLine
	}

	content = strings.TrimSpace(content)
	return Message{
		AuthorID:   author,
		Content:    content,
		Mentions:   Mentions(content),
		Privileged: privileged,
	}, nil
}

// Mentions extracts account ids from "@id" and "<@id>" tokens.
func Mentions(content string) []string {
	var out []string
	for _, f := range strings.Fields(content) {
		var id string
		switch {
		case strings.HasPrefix(f, "<@"):
			id, _, _ = strings.Cut(strings.TrimPrefix(f, "<@"), ">")
		case strings.HasPrefix(f, "@"):
			id = strings.TrimRight(strings.TrimPrefix(f, "@"), ",.!?")
		default:
			continue
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
