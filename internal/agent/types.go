package agent

import "ContraChat/internal/model"

// Request is the body POSTed to the counterargument endpoint.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Stream         bool   `json:"stream"`
}

// Response is the non-streaming success body.
type Response struct {
	Message   string           `json:"message"`
	Arguments []model.Argument `json:"arguments"`
}

// errorBody is the optional error payload on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

// Result is the outcome of one completed exchange with the agent.
type Result struct {
	// Streamed reports which path produced the result. For the streaming
	// path the content was already delivered via callbacks and DeltaCount
	// says how many fragments arrived; Message and Arguments are only set
	// on the non-streaming path.
	Streamed   bool
	DeltaCount int
	Message    string
	Arguments  []model.Argument
}
