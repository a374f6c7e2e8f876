// Package main provides asrctl, a debugging CLI for the ASR service.
//
// Usage:
//
//	asrctl <command> [flags]
//
// Commands:
//
//	transcribe - run the configured STT backend and sanitizer on a WAV file
//	publish    - store a WAV file and publish VAD events for it
//	health     - query the gRPC health service
//
// Configuration is read from the same environment variables as the service.
package main

import (
	"fmt"
	"os"

	"ai-speech-asr-service/cmd/asrctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
