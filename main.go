package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/term"

	"agenthud/doctor"
	"agenthud/engine"
	"agenthud/log"
	"agenthud/meeting"
	"agenthud/shutdown"
	"agenthud/update"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(eng *engine.Engine, sess meeting.Session) {
	shutdownOnce.Do(func() {
		if sess != nil {
			sess.Close()
		}
		if eng != nil {
			if n := len(eng.Transcript()); n > 0 {
				log.SessionEnd(n)
			}
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
	})
}

func resolveToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if tok := os.Getenv("VIDEOSDK_TOKEN"); tok != "" {
		return tok, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no token: pass -token or set VIDEOSDK_TOKEN")
	}
	fmt.Fprint(os.Stderr, "Token: ")
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty token")
	}
	return string(data), nil
}

func main() {
	serverFlag := flag.String("server", "wss://signal.videosdk.live", "Signaling server URL")
	meetingFlag := flag.String("meeting", "", "Meeting ID to join")
	tokenFlag := flag.String("token", "", "Auth token (default: VIDEOSDK_TOKEN env, then prompt)")
	nameFlag := flag.String("name", "Agent Tester", "Local participant display name")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	replayFlag := flag.String("replay", "", "Replay a JSON-lines message capture instead of joining a meeting")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("agenthud %s\n", version)
		os.Exit(0)
	}

	if *replayFlag != "" {
		os.Exit(runReplay(*replayFlag))
	}

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Config{Server: *serverFlag, Token: *tokenFlag}))
	}

	if *meetingFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -meeting is required (or use -replay <file>)")
		os.Exit(1)
	}

	token, err := resolveToken(*tokenFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	} else {
		log.SessionStart(*meetingFlag, *serverFlag)
	}

	eng := engine.New()
	sess := meeting.NewPubSub(meeting.Config{
		Server:      *serverFlag,
		MeetingID:   *meetingFlag,
		Token:       token,
		DisplayName: *nameFlag,
	})

	var sink Sink = headlessSink{}
	tuiDone := make(chan struct{})
	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(sess.ToggleMic)
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			close(tuiDone)
			gracefulShutdown(eng, sess)
		}()
		sink = tuiSink{}
	} else {
		close(tuiDone)
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(eng, sess)
	}()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
		sink.UpdateAvailable(rel.Version)
	})

	sink.Status(fmt.Sprintf("connecting to %s...", *meetingFlag))
	if err := sess.Connect(context.Background()); err != nil {
		log.Errorf("connect error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		gracefulShutdown(eng, sess)
		os.Exit(1)
	}
	sink.Status("meeting " + *meetingFlag)

	runLoop(eng, sess, sink)

	gracefulShutdown(eng, sess)
	<-tuiDone
}

// runLoop drains the session event stream into the engine and pushes a fresh
// view to the sink after every mutation. Single consumer keeps engine calls
// in arrival order.
func runLoop(eng *engine.Engine, sess meeting.Session, sink Sink) {
	var prog progress
	for ev := range sess.Events() {
		switch ev.Type {
		case meeting.EventJoined:
			log.AgentEvent("joined")
			eng.SetJoined(true)
		case meeting.EventLeft:
			log.AgentEvent("left")
			eng.SetJoined(false)
		case meeting.EventMessage:
			eng.Ingest(ev.Payload)
		case meeting.EventActivity:
			eng.SetActivity(ev.AgentSpeaking, ev.UserSpeaking)
			sink.Mic(ev.MicOn)
		case meeting.EventError:
			log.Errorf("session error: %v", ev.Err)
			sink.Status(fmt.Sprintf("disconnected: %v", ev.Err))
			eng.SetJoined(false)
		}
		v := eng.Snapshot()
		prog.observe(v)
		sink.Refresh(v)
	}
}

// progress tracks what has already been written to the transcript log so the
// run loop only logs deltas: state changes, newly completed turns, and newly
// finalized transcript entries.
type progress struct {
	state     engine.State
	turns     int
	finalized map[string]bool
}

func (p *progress) observe(v engine.View) {
	if v.State != p.state {
		log.StateChange(string(v.State))
		p.state = v.State
	}

	if len(v.History) < p.turns {
		// History was cleared on leave; start counting again.
		p.turns = 0
	}
	for _, snap := range v.History[p.turns:] {
		log.TurnMetrics(turnFromSnapshot(v.Kind, snap))
	}
	p.turns = len(v.History)

	if p.finalized == nil {
		p.finalized = make(map[string]bool)
	}
	for _, e := range v.Transcript {
		if e.Partial || p.finalized[e.Key] {
			continue
		}
		p.finalized[e.Key] = true
		log.TranscriptLine(string(e.Role), e.Text)
	}
}

func turnFromSnapshot(kind engine.Kind, snap engine.Snapshot) log.Turn {
	t := log.Turn{Kind: string(kind), Interrupted: snap.Bool("interrupted")}
	t.E2EMs, _ = snap.Float("e2e_latency")
	if kind == engine.KindRealtime {
		t.Provider, _ = snap.Str("provider_class_name")
		t.Model, _ = snap.Str("provider_model_name")
		t.TTFBMs, _ = snap.Float("ttfb")
		t.ThinkingMs, _ = snap.Float("thinking_delay")
	} else {
		t.Provider, _ = snap.Str("llm_provider_class")
		t.Model, _ = snap.Str("llm_model_name")
		t.STTMs, _ = snap.Float("stt_latency")
		t.LLMTTFTMs, _ = snap.Float("llm_ttft")
		t.TTSMs, _ = snap.Float("tts_latency")
		t.TotalTokens, _ = snap.Float("total_tokens")
	}
	return t
}
