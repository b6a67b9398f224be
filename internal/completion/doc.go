// Package completion sends one conversation snapshot to the Messages API and
// returns the model's reply in the memory data model.
//
// A Client never retries. Non-success responses surface as *ServiceError and
// structurally invalid success envelopes as *MalformedResponseError; both are
// fatal to the conversation that issued the request.
package completion
