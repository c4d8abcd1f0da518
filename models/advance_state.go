package models

import (
	"github.com/APTrust/deposit/constants"
	"github.com/nsqio/go-nsq"
)

// AdvanceState carries one advance event through the deposit
// supervisor, from the NSQ message to the decision it led to.
type AdvanceState struct {
	// NSQMessage is the deposit_advance message. It's nil when the
	// advance did not come from the queue.
	NSQMessage *nsq.Message

	DepositId string
	Status    *DepositStatus

	// JobType is what the planner chose. It stays JobNone when the
	// deposit was terminal, busy or done.
	JobType constants.JobType

	// Done is true when the planner said the deposit has nothing
	// left to do.
	Done bool

	Summary *WorkSummary
}

func NewAdvanceState(depositId string, message *nsq.Message) *AdvanceState {
	state := &AdvanceState{
		NSQMessage: message,
		DepositId:  depositId,
		Summary:    NewWorkSummary(depositId, "Advance"),
	}
	if message != nil {
		state.Summary.AttemptNumber = message.Attempts
	}
	return state
}

// Touch tells nsqd we're still working on the message.
func (state *AdvanceState) Touch() {
	if state.NSQMessage != nil {
		state.NSQMessage.Touch()
	}
}
