// Package connection lets ncasign sign through a running ncabridge
// service instead of dialing the agent itself.
//
// BridgeClient speaks the bridge's JSON envelope and turns error
// envelopes back into domain errors, so errors.Is works the same on
// both paths.
package connection
