package session

import "math/rand"

// FallbackText replaces an assistant message that finished with no content.
// An empty final message is never an acceptable terminal state.
const FallbackText = "No response received."

// errorMessages is the pool of user-facing failure strings. One is chosen
// at random per failure; the variety keeps repeated failures from feeling
// robotic. The raw error is kept separately for the retry affordance.
var errorMessages = []string{
	"Hmm, I hit a snag reaching the agent. Mind trying again?",
	"Something went wrong on my end. Give it another shot?",
	"The connection dropped before I could finish. Try again?",
	"I couldn't put together a response this time. One more try?",
}

func randomErrorMessage() string {
	return errorMessages[rand.Intn(len(errorMessages))]
}
