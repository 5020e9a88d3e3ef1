// Package keyboard describes reply and inline keyboards independently of the transport.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is a single keyboard key.
type Button struct {
	Label string
	// URL turns the button into an inline link; only honoured for inline layouts.
	URL string
	// RequestContact asks the client to share the user's phone number.
	RequestContact bool
}

// Layout is a keyboard attached to an outbound message.
type Layout struct {
	Rows    [][]Button
	Inline  bool
	OneTime bool
}

// Reply builds a resized reply keyboard from rows of labels.
func Reply(rows ...[]string) *Layout {
	l := &Layout{Rows: make([][]Button, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]Button, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, Button{Label: label})
		}
		l.Rows = append(l.Rows, buttons)
	}
	return l
}

// Contact builds a one-time keyboard with a single contact-request button.
func Contact(label string) *Layout {
	return &Layout{
		Rows:    [][]Button{{{Label: label, RequestContact: true}}},
		OneTime: true,
	}
}

// Link builds an inline keyboard with a single URL button.
func Link(label, url string) *Layout {
	return &Layout{
		Rows:   [][]Button{{{Label: label, URL: url}}},
		Inline: true,
	}
}

// Labels flattens the layout into its button labels, row by row.
func (l *Layout) Labels() [][]string {
	if l == nil {
		return nil
	}
	out := make([][]string, 0, len(l.Rows))
	for _, row := range l.Rows {
		labels := make([]string, 0, len(row))
		for _, b := range row {
			labels = append(labels, b.Label)
		}
		out = append(out, labels)
	}
	return out
}

// Markup converts the layout into telebot reply markup. A nil layout yields nil.
func (l *Layout) Markup() *tele.ReplyMarkup {
	if l == nil {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(l.Rows))
	for _, row := range l.Rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			switch {
			case l.Inline && b.URL != "":
				buttons = append(buttons, markup.URL(b.Label, b.URL))
			case b.RequestContact:
				buttons = append(buttons, markup.Contact(b.Label))
			default:
				buttons = append(buttons, markup.Text(b.Label))
			}
		}
		rows = append(rows, markup.Row(buttons...))
	}
	if l.Inline {
		markup.Inline(rows...)
		return markup
	}
	markup.ResizeKeyboard = true
	markup.OneTimeKeyboard = l.OneTime
	markup.Reply(rows...)
	return markup
}
