package audio

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type recordingPlayer struct {
	mu     sync.Mutex
	frames int
}

func (p *recordingPlayer) PlayFrames(pcm []byte) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames += len(pcm) / 8
	return time.Millisecond, nil
}

func (p *recordingPlayer) Stop() {}

// fakeEspeak writes a shell script that behaves like espeak-ng with only an
// English voice installed. Every call's arguments are appended to the log.
func fakeEspeak(t *testing.T) (binary, argLog string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "word.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	writeTestWAV(t, f, 22050)
	f.Close()

	argLog = filepath.Join(dir, "args.log")
	script := `#!/bin/sh
echo "$@" >> "` + argLog + `"
case "$1" in
--voices=en)
	echo "Pty Language       Age/Gender VoiceName          File                 Other Languages"
	echo " 2  en              --/M      English            gmw/en"
	exit 0 ;;
--voices=*)
	echo "Pty Language       Age/Gender VoiceName          File                 Other Languages"
	exit 0 ;;
-v)
	if [ "$2" != "en" ]; then
		echo "Error processing file: voice not found" >&2
		exit 1
	fi ;;
esac
while [ $# -gt 0 ]; do
	if [ "$1" = "-w" ]; then
		cp "` + wavPath + `" "$2"
	fi
	shift
done
`
	binary = filepath.Join(dir, "espeak-ng")
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary, argLog
}

func TestEspeakSpeakerVoices(t *testing.T) {
	binary, argLog := fakeEspeak(t)
	player := &recordingPlayer{}
	s := NewEspeakSpeaker(zaptest.NewLogger(t), player, binary, 44100)

	if !s.Supports("en") {
		t.Fatal("en voice not detected")
	}
	if s.Supports("he") {
		t.Fatal("he must have no voice")
	}

	if err := s.Speak(context.Background(), "cat", "en", 0.5); err != nil {
		t.Fatalf("Speak en: %v", err)
	}
	// a consented mismatch still speaks, with the default voice
	if err := s.Speak(context.Background(), "dog", "he", 0.5); err != nil {
		t.Fatalf("Speak he: %v", err)
	}
	if player.frames == 0 {
		t.Fatal("nothing played")
	}

	raw, err := os.ReadFile(argLog)
	if err != nil {
		t.Fatal(err)
	}
	var speakCalls []string
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if !strings.HasPrefix(line, "--voices=") {
			speakCalls = append(speakCalls, line)
		}
	}
	if len(speakCalls) != 2 {
		t.Fatalf("speak calls = %q", speakCalls)
	}
	if !strings.HasPrefix(speakCalls[0], "-v en -w ") || !strings.HasSuffix(speakCalls[0], " cat") {
		t.Errorf("en call = %q", speakCalls[0])
	}
	if strings.Contains(speakCalls[1], "-v") || !strings.HasSuffix(speakCalls[1], " dog") {
		t.Errorf("he call = %q, want no voice flag", speakCalls[1])
	}
}
