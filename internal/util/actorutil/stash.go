package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// Stash buffers messages while an actor is busy. With Limit > 0 the oldest
// message is dropped when the stash is full.
type Stash struct {
	Limit int
	stash []stashElem
}

type stashElem struct {
	msg    any
	sender *actor.PID
}

// Stash appends msg and reports false when an older message had to be
// dropped to make room.
func (stash *Stash) Stash(ctx actor.Context, msg any) bool {
	kept := true
	if stash.Limit > 0 && len(stash.stash) >= stash.Limit {
		stash.stash = stash.stash[1:]
		kept = false
	}
	stash.stash = append(stash.stash, stashElem{
		msg:    msg,
		sender: ctx.Sender(),
	})
	return kept
}

func (stash *Stash) UnstashAll(ctx actor.Context) {
	for _, elem := range stash.stash {
		ctx.RequestWithCustomSender(ctx.Self(), elem.msg, elem.sender)
	}
	stash.stash = nil
}

func (stash *Stash) UnstashOldest(ctx actor.Context) {
	if len(stash.stash) > 0 {
		first := stash.stash[0]
		ctx.RequestWithCustomSender(ctx.Self(), first.msg, first.sender)
		stash.stash = stash.stash[1:]
	}
}
