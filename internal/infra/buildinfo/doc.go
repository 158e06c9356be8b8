// Package buildinfo exposes build-time identity of the ncabridge binaries.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/ncabridge-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
