package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

// Turn is the structured record written for each completed conversational
// turn. Zero-valued latency fields were absent from the snapshot.
type Turn struct {
	Kind        string
	Provider    string
	Model       string
	TTFBMs      float64
	ThinkingMs  float64
	STTMs       float64
	LLMTTFTMs   float64
	TTSMs       float64
	E2EMs       float64
	TotalTokens float64
	Interrupted bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: AGENTHUD_LOG_PATH environment variable
	envPath := os.Getenv("AGENTHUD_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptPath := filepath.Join(dir, "transcript_log.txt")
	transcriptFile, err = os.OpenFile(transcriptPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// TurnMetrics writes one structured line per completed conversational turn.
func TurnMetrics(t Turn) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("kind", t.Kind).
		Str("provider", t.Provider).
		Str("model", t.Model).
		Float64("ttfb_ms", t.TTFBMs).
		Float64("thinking_ms", t.ThinkingMs).
		Float64("stt_ms", t.STTMs).
		Float64("llm_ttft_ms", t.LLMTTFTMs).
		Float64("tts_ms", t.TTSMs).
		Float64("e2e_ms", t.E2EMs).
		Float64("tokens", t.TotalTokens).
		Bool("interrupted", t.Interrupted).
		Msg("turn")
}

// TranscriptLine appends one finalized transcript segment to the
// tab-delimited transcript log.
func TranscriptLine(role, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, role, text)
	transcriptFile.WriteString(line)
}

// AgentEvent records a generic event received on the stream.
func AgentEvent(name string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("event", name).Msg("agent_event")
}

func StateChange(state string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("state", state).Msg("state_change")
}

func SessionStart(meetingID, server string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("meeting", meetingID).
		Str("server", server).
		Msg("session_start")
}

func SessionEnd(messages int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("messages", messages).
		Msg("session_end")
}
