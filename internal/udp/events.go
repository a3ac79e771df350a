package udp

import (
	"encoding/json"
	"sync"

	"ubipos/internal/event"
	"ubipos/internal/monitoring"
)

// Message is the JSON datagram body. Only the fields of its Type are set.
type Message struct {
	Type      string `json:"type"`
	Session   string `json:"session,omitempty"`
	Timestamp int64  `json:"t_ns"`

	Radians *float64 `json:"heading_rad,omitempty"`

	Duration *float64 `json:"duration_s,omitempty"`
	Length   *float64 `json:"length_m,omitempty"`

	Floor *int `json:"floor,omitempty"`

	Context     string             `json:"context,omitempty"`
	Reliability map[string]float64 `json:"reliability,omitempty"`
}

func HeadingMessage(session string, h event.Heading) Message {
	r := h.Radians
	return Message{Type: "heading", Session: session, Timestamp: h.Timestamp, Radians: &r}
}

func StepMessage(session string, s event.Step) Message {
	d, l := s.Duration, s.Length
	return Message{Type: "step", Session: session, Timestamp: s.Timestamp, Duration: &d, Length: &l}
}

func FloorMessage(session string, f event.Floor) Message {
	n := f.Floor
	return Message{Type: "floor", Session: session, Timestamp: f.Timestamp, Floor: &n}
}

// ContextMessage has no timestamp; context events carry none.
func ContextMessage(session string, c event.Context) Message {
	return Message{
		Type:    "context",
		Session: session,
		Context: c.Type.String(),
		Reliability: map[string]float64{
			"pdr":      c.PDR,
			"wifi":     c.WiFi,
			"magnetic": c.Magnetic,
			"ble":      c.BLE,
			"gps":      c.GPS,
		},
	}
}

type datagramSender interface {
	Send(payload []byte) error
}

// EventSink implements every event listener interface and forwards each
// event as one datagram. Send failures are counted and logged, never
// returned to the producer.
type EventSink struct {
	session string
	out     datagramSender

	mu     sync.Mutex
	sent   int
	failed int
}

var (
	_ event.HeadingListener = (*EventSink)(nil)
	_ event.StepListener    = (*EventSink)(nil)
	_ event.FloorListener   = (*EventSink)(nil)
	_ event.ContextListener = (*EventSink)(nil)
)

func NewEventSink(out datagramSender, session string) *EventSink {
	return &EventSink{out: out, session: session}
}

func (s *EventSink) OnHeadingChange(h event.Heading) { s.send(HeadingMessage(s.session, h)) }
func (s *EventSink) OnStep(st event.Step)            { s.send(StepMessage(s.session, st)) }
func (s *EventSink) OnFloor(f event.Floor)           { s.send(FloorMessage(s.session, f)) }
func (s *EventSink) OnContext(c event.Context)       { s.send(ContextMessage(s.session, c)) }

// Stats returns how many datagrams were sent and how many failed.
func (s *EventSink) Stats() (sent, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.failed
}

func (s *EventSink) send(m Message) {
	b, err := json.Marshal(m)
	if err == nil {
		err = s.out.Send(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failed++
		// Log the first failure and then every 100th to keep a dead
		// receiver from flooding the log.
		if s.failed%100 == 1 {
			monitoring.Logf("udp: %s send failed (%d so far): %v", m.Type, s.failed, err)
		}
		return
	}
	s.sent++
}
