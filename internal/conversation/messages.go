package conversation

import (
	"fmt"
	"net/url"

	"github.com/m3rciful/bingobot/core/telegram/format"
	"github.com/m3rciful/bingobot/core/telegram/keyboard"
)

const (
	textMainMenu          = "Hello! What do you want to do?\n\nChoose from the menu below:"
	textDepositMenu       = "Please choose payment method for deposit:"
	textRegistered        = "Thank you! Your phone number has been registered."
	textPromptStart       = "Please share your phone number to get started:"
	textPromptPlay        = "Please register first by sharing your phone number."
	textPromptDeposit     = "Please share your phone number for deposit:"
	textPlay              = "Click below to start playing Bingo! 🎉"
	textAskAccount        = "Please send me your ACCOUNT/PHONE NUMBER for deposit.\n\n⚠️ *WARNING*: Enter only a valid number."
	textAskAmount         = "How much money do you want to deposit? (Enter amount)"
	textTransferSaved     = "✅ Transfer confirmation saved. Thank you! 🎉"
	textDepositInstructFm = "✅ Got it! Please deposit %s to the official account:\n\n%s\n\nThen send the *transfer confirmation message or screenshot* here."

	unknownHandle = "Unknown"
)

// reply is one outbound message.
type reply struct {
	text     string
	keyboard *keyboard.Layout
}

func mainMenu() reply {
	return reply{textMainMenu, keyboard.Reply(
		[]string{LabelPlay, LabelDeposit},
		[]string{LabelWithdraw, LabelCheckBalance},
		[]string{LabelInvite, LabelHowToPlay},
		[]string{LabelContactUs, LabelJoinUs},
	)}
}

func depositMenu() reply {
	return reply{textDepositMenu, keyboard.Reply(
		[]string{LabelAbyssinia},
		[]string{LabelTelebirr},
		[]string{LabelCBE},
		[]string{LabelBackToMenu},
	)}
}

func phonePrompt(text string) reply {
	return reply{text, keyboard.Contact(LabelSharePhone)}
}

// playLink builds the inline button opening the game for the given handle.
func playLink(host, handle string) reply {
	link := "https://" + host + "/?username=" + url.QueryEscape(handle)
	return reply{textPlay, keyboard.Link(LabelPlayNowButton, link)}
}

func depositInstructions(amount, account string) reply {
	return reply{text: fmt.Sprintf(textDepositInstructFm, format.Bold(amount+" ETB"), format.Bold(account))}
}

func comingSoonReply(label string) reply {
	return reply{text: label + " feature is coming soon!"}
}
