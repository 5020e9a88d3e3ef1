package conversation

import coreconfig "github.com/m3rciful/bingobot/core/config"

// TokenKind is the closed set of inputs the state machine reacts to.
type TokenKind int

const (
	TokenUnknown TokenKind = iota
	TokenStart
	TokenPlay
	TokenDeposit
	TokenBackToMenu
	TokenSelectMethod
	TokenComingSoon
)

func (k TokenKind) String() string {
	switch k {
	case TokenStart:
		return "start"
	case TokenPlay:
		return "play"
	case TokenDeposit:
		return "deposit"
	case TokenBackToMenu:
		return "back_to_menu"
	case TokenSelectMethod:
		return "select_method"
	case TokenComingSoon:
		return "coming_soon"
	default:
		return "unknown"
	}
}

// Token is a classified message text.
type Token struct {
	Kind TokenKind
	// Label is the button text for SelectMethod and ComingSoon tokens.
	Label string
	// Method is the deposit.accounts key for SelectMethod tokens.
	Method string
}

// Button labels. Matching is exact, as the client echoes keyboard labels verbatim.
const (
	LabelStart         = "/start"
	LabelPlay          = "Play"
	LabelDeposit       = "Deposit"
	LabelBackToMenu    = "Back to Main Menu"
	LabelWithdraw      = "Withdraw"
	LabelCheckBalance  = "Check Balance"
	LabelInvite        = "Invite"
	LabelHowToPlay     = "How To Play"
	LabelContactUs     = "Contact Us"
	LabelJoinUs        = "Join Us"
	LabelAbyssinia     = "Bank Of Abyssinia [+10% Bonus]"
	LabelTelebirr      = "Telebirr [+10% Bonus]"
	LabelCBE           = "Commercial Bank of Ethiopia [+10% Bonus]"
	LabelSharePhone    = "Share Phone Number"
	LabelPlayNowButton = "Play Now 🎮"
)

// methodLabels maps payment-method buttons to their account keys, in menu order.
var methodLabels = []struct {
	label  string
	method string
}{
	{LabelAbyssinia, coreconfig.MethodAbyssinia},
	{LabelTelebirr, coreconfig.MethodTelebirr},
	{LabelCBE, coreconfig.MethodCBE},
}

var comingSoon = map[string]struct{}{
	LabelWithdraw:     {},
	LabelCheckBalance: {},
	LabelInvite:       {},
	LabelHowToPlay:    {},
	LabelContactUs:    {},
	LabelJoinUs:       {},
}

// Classify maps message text onto a Token.
func Classify(text string) Token {
	switch text {
	case LabelStart:
		return Token{Kind: TokenStart}
	case LabelPlay:
		return Token{Kind: TokenPlay}
	case LabelDeposit:
		return Token{Kind: TokenDeposit}
	case LabelBackToMenu:
		return Token{Kind: TokenBackToMenu}
	}
	if method, ok := MethodForLabel(text); ok {
		return Token{Kind: TokenSelectMethod, Label: text, Method: method}
	}
	if _, ok := comingSoon[text]; ok {
		return Token{Kind: TokenComingSoon, Label: text}
	}
	return Token{Kind: TokenUnknown}
}

// MethodForLabel resolves a payment-method button label to its account key.
func MethodForLabel(label string) (string, bool) {
	for _, m := range methodLabels {
		if m.label == label {
			return m.method, true
		}
	}
	return "", false
}
