package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"agenthud/log"
)

const pingInterval = 25 * time.Second

// wireFrame is the signaling protocol envelope. Outbound frames carry an
// action; inbound frames additionally carry topic payloads and participant
// state.
type wireFrame struct {
	Action        string          `json:"action"`
	Topic         string          `json:"topic,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	DisplayName   string          `json:"displayName,omitempty"`
	ParticipantID string          `json:"participantId,omitempty"`
	IsLocal       bool            `json:"isLocal,omitempty"`
	IsSpeaking    bool            `json:"isSpeaking,omitempty"`
	MicOn         bool            `json:"micOn,omitempty"`
}

type participant struct {
	name     string
	local    bool
	speaking bool
	micOn    bool
}

// PubSubSession is the live WebSocket-backed session.
type PubSubSession struct {
	cfg    Config
	events chan Event

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	participants map[string]*participant
	closing      bool
	micOn        bool
}

func NewPubSub(cfg Config) *PubSubSession {
	if cfg.DisplayName == "" {
		cfg.DisplayName = "Agent Tester"
	}
	return &PubSubSession{
		cfg:          cfg,
		events:       make(chan Event, 64),
		participants: make(map[string]*participant),
	}
}

func (s *PubSubSession) Connect(ctx context.Context) error {
	endpoint, err := url.Parse(s.cfg.Server)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	endpoint = endpoint.JoinPath("rooms", s.cfg.MeetingID)

	headers := http.Header{}
	headers.Set("Authorization", "Token "+s.cfg.Token)

	s.ctx, s.cancel = context.WithCancel(ctx)
	conn, _, err := websocket.Dial(s.ctx, endpoint.String(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		s.cancel()
		return fmt.Errorf("dial signaling server: %w", err)
	}
	s.conn = conn

	if err := s.send(wireFrame{Action: "join", DisplayName: s.cfg.DisplayName}); err != nil {
		s.conn.Close(websocket.StatusInternalError, "join failed")
		s.cancel()
		return fmt.Errorf("join: %w", err)
	}
	if err := s.send(wireFrame{Action: "subscribe", Topic: TopicAgentMetrics}); err != nil {
		s.conn.Close(websocket.StatusInternalError, "subscribe failed")
		s.cancel()
		return fmt.Errorf("subscribe %s: %w", TopicAgentMetrics, err)
	}

	go s.runReceiver()
	go s.runPinger()
	return nil
}

func (s *PubSubSession) Events() <-chan Event {
	return s.events
}

func (s *PubSubSession) ToggleMic() {
	s.mu.Lock()
	if s.conn == nil || s.closing {
		s.mu.Unlock()
		return
	}
	s.micOn = !s.micOn
	on := s.micOn
	s.mu.Unlock()
	if err := s.send(wireFrame{Action: "mic", MicOn: on}); err != nil {
		log.Warnf("mic toggle send failed: %v", err)
	}
}

// Close is safe to call at any point, including before Connect or after a
// failed dial; it only tears down what Connect managed to set up.
func (s *PubSubSession) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	connected := s.conn != nil
	s.mu.Unlock()

	if !connected {
		return nil
	}

	// Best effort: tell the server we are leaving before tearing down.
	_ = s.send(wireFrame{Action: "leave"})
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.cancel()
	return err
}

func (s *PubSubSession) send(f wireFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

func (s *PubSubSession) runPinger() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.Ping(s.ctx); err != nil {
				return
			}
		}
	}
}

func (s *PubSubSession) runReceiver() {
	defer close(s.events)
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				s.events <- Event{Type: EventLeft}
				return
			}
			s.events <- Event{Type: EventError, Err: err}
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warnf("malformed signaling frame: %v", err)
			continue
		}

		switch frame.Action {
		case "joined":
			s.events <- Event{Type: EventJoined}
		case "left":
			s.events <- Event{Type: EventLeft}
			return
		case "message":
			if frame.Topic != TopicAgentMetrics {
				continue
			}
			s.events <- Event{Type: EventMessage, Payload: []byte(frame.Payload)}
		case "participant":
			s.events <- s.applyParticipant(frame)
		}
	}
}

// applyParticipant folds one participant frame into the roster and derives
// the activity signal: the agent is located by display name, the user is
// the local participant.
func (s *PubSubSession) applyParticipant(f wireFrame) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[f.ParticipantID]
	if !ok {
		p = &participant{}
		s.participants[f.ParticipantID] = p
	}
	p.name = f.DisplayName
	p.local = f.IsLocal
	p.speaking = f.IsSpeaking
	p.micOn = f.MicOn

	ev := Event{Type: EventActivity}
	for _, p := range s.participants {
		if p.local {
			ev.UserSpeaking = ev.UserSpeaking || p.speaking
			ev.MicOn = p.micOn
		} else if isAgentName(p.name) {
			ev.AgentSpeaking = ev.AgentSpeaking || p.speaking
		}
	}
	return ev
}
