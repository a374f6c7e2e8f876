package commands

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ai-speech-asr-service/internal/app"
	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/service/audio"
	"ai-speech-asr-service/internal/service/sanitize"
	"ai-speech-asr-service/internal/service/stt"
	"ai-speech-asr-service/internal/storage"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file.wav>",
	Short: "Transcribe a WAV file with the configured backend",
	Long: `Transcribe a local WAV file with the backend selected by STT_PROVIDER
and report what the sanitizer makes of the result.

Examples:
  STT_PROVIDER=whispercpp asrctl transcribe hello.wav
  STT_PROVIDER=google asrctl transcribe hello.wav --start 16000 --stop 48000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, _ := cmd.Flags().GetUint("start")
		stop, _ := cmd.Flags().GetUint("stop")
		provider, _ := cmd.Flags().GetString("provider")
		return transcribeFile(cmd, args[0], provider, start, stop)
	},
}

func init() {
	transcribeCmd.Flags().Uint("start", 0, "First frame of the segment")
	transcribeCmd.Flags().Uint("stop", 0, "Frame after the segment (0 = end of file)")
	transcribeCmd.Flags().String("provider", "", "Override STT_PROVIDER")
}

func transcribeFile(cmd *cobra.Command, path, provider string, start, stop uint) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := loadConfig()
	if provider != "" {
		cfg.STT.Provider = provider
	}
	transcriber, closeSTT, err := app.NewTranscriber(ctx, cfg.STT)
	if err != nil {
		return err
	}
	defer closeSTT()

	// Stage the file in a scratch store so it is read through the same
	// loader as the service.
	store, err := storage.NewLocal(filepath.Join(os.TempDir(), "asrctl"))
	if err != nil {
		return err
	}
	const containerID = "asrctl"
	if err := copyToStore(ctx, store, path, containerID); err != nil {
		return err
	}
	if stop == 0 {
		stop = math.MaxUint32
	}
	ref := models.AudioSegmentReference{ContainerID: containerID, Start: start, Stop: stop}

	var samples []int16
	var rate int
	err = audio.WithSource(ctx, audio.NewStoreLoader(store, audio.DefaultLimits()), ref, func(src audio.Source) error {
		chunks, err := src.Read()
		if err != nil {
			return err
		}
		for _, c := range chunks {
			samples = append(samples, c...)
		}
		rate = src.Rate()
		return nil
	})
	if err != nil {
		return err
	}

	text, err := transcriber.Transcribe(ctx, samples, rate)
	if err != nil {
		return err
	}
	duration := float64(len(samples)) / float64(rate)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "provider:   %s\n", cfg.STT.Provider)
	fmt.Fprintf(out, "duration:   %.2fs (%d samples @ %d Hz)\n", duration, len(samples), rate)
	fmt.Fprintf(out, "transcript: %q\n", text)
	fmt.Fprintf(out, "continues:  %v\n", stt.IsPartial(text))
	if _, rule := sanitize.Filter(duration, text); rule != sanitize.RuleNone {
		fmt.Fprintf(out, "sanitizer:  rejected (%s)\n", rule)
	} else {
		fmt.Fprintf(out, "sanitizer:  accepted\n")
	}
	return nil
}

func copyToStore(ctx context.Context, store storage.Store, path, containerID string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	w, err := store.Create(ctx, storage.AudioPath(containerID))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
