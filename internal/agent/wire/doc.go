// Package wire defines the message schema spoken with the local signing agent.
//
// Outbound traffic is a single request type:
//
//   - SignRequest: a "sign" call on the basics module with fixed signing policy
//
// Inbound frames are decoded into a closed set of variants before any
// business logic sees them:
//
//   - SignSuccess: body.result is a non-empty list of strings
//   - SignError: status=false with an agent error code and message
//   - Unrecognized: any other valid JSON document
//
// A frame that is not valid JSON fails with domain.ErrProtocolParse.
package wire
