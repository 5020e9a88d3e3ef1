// Package gateway talks to the Telegram Bot API: it fetches pending updates
// and delivers outbound messages with their keyboards.
package gateway

import tele "gopkg.in/telebot.v4"

// Contact is a shared phone contact.
type Contact struct {
	PhoneNumber string
}

// Photo references the largest size of a sent picture.
type Photo struct {
	FileID string
}

// Event is one inbound update reduced to what the conversation needs.
type Event struct {
	UpdateID int
	// HasMessage is false for updates that carry no message (edits, callbacks, ...).
	HasMessage bool
	ChatID     int64
	SenderID   int64
	// Handle is the sender's @username without the at sign; empty when unset.
	Handle  string
	Text    string
	Contact *Contact
	Photo   *Photo
}

func eventFromUpdate(u tele.Update) Event {
	ev := Event{UpdateID: u.ID}
	m := u.Message
	if m == nil {
		return ev
	}
	ev.HasMessage = true
	if m.Chat != nil {
		ev.ChatID = m.Chat.ID
	}
	if m.Sender != nil {
		ev.SenderID = m.Sender.ID
		ev.Handle = m.Sender.Username
		if ev.ChatID == 0 {
			ev.ChatID = m.Sender.ID
		}
	}
	ev.Text = m.Text
	if m.Contact != nil {
		ev.Contact = &Contact{PhoneNumber: m.Contact.PhoneNumber}
	}
	if m.Photo != nil && m.Photo.FileID != "" {
		ev.Photo = &Photo{FileID: m.Photo.FileID}
	}
	return ev
}
