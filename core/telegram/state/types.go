package state

// State identifies a step of the deposit conversation.
type State string

const (
	// StateNone indicates there is no active conversation with the chat.
	StateNone State = "NONE"
	// StateAwaitingAccountNumber waits for the payer's account or phone number.
	StateAwaitingAccountNumber State = "AWAITING_ACCOUNT_NUMBER"
	// StateAwaitingAmount waits for the deposit amount.
	StateAwaitingAmount State = "AWAITING_AMOUNT"
	// StateAwaitingTransferMessage waits for a confirmation text or screenshot.
	StateAwaitingTransferMessage State = "AWAITING_TRANSFER_MESSAGE"
)

// Session stores the conversation position of one chat.
type Session struct {
	State State
	// Method is the payment method chosen at the start of the cycle.
	Method string
}

// Active reports whether the session is mid-flow.
func (s Session) Active() bool {
	return s.State != "" && s.State != StateNone
}

// Manager tracks sessions keyed by chat id.
type Manager interface {
	Get(chatID int64) Session
	Set(chatID int64, session Session)
	Clear(chatID int64)
	Len() int
}
