package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/pkg/errors"
)

// ----- Messages ----- //

type (
	MsgType   int
	NoteState int

	// Envelope is the JSON frame exchanged with websocket clients.
	Envelope struct {
		ID     uuid.UUID `json:"id"`
		Typ    MsgType   `json:"type"`
		UserID uuid.UUID `json:"userId"`
		// TextMsg | MIDIMsg | ConnectMsg | StatsMsg
		Payload json.RawMessage `json:"payload"`
	}

	// TextMsg carries one line of the text protocol, or an error reply.
	TextMsg struct {
		Body  string `json:"body"`
		Error string `json:"error,omitempty"`
	}

	MIDIMsg struct {
		State NoteState `json:"state"`
		// MIDI note number, C3 = 60 (0-127)
		Number int `json:"number"`
		// 0-127
		Velocity int `json:"velocity"`
		// 0-15
		Channel int `json:"channel"`
	}

	// ConnectMsg is sent to a client right after the upgrade.
	ConnectMsg struct {
		UserID uuid.UUID `json:"userId"`
	}

	StatsMsg struct {
		audio.Stats
	}
)

const (
	TEXT MsgType = iota
	MIDI
	CONNECT
	STATS
)

const (
	NOTE_OFF NoteState = iota
	NOTE_ON
)

var msgTypeNames = map[MsgType]string{
	TEXT:    "text",
	MIDI:    "midi",
	CONNECT: "connect",
	STATS:   "stats",
}

// SetPayload marshals payload into e.
func (e *Envelope) SetPayload(payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e.Payload = p
	return nil
}

// Unwrap unmarshals the payload of e into msg.
func (e *Envelope) Unwrap(msg any) error {
	return json.Unmarshal(e.Payload, msg)
}

func (t *MsgType) UnmarshalJSON(data []byte) error {
	var rawType string
	if err := json.Unmarshal(data, &rawType); err != nil {
		return err
	}
	for typ, name := range msgTypeNames {
		if name == rawType {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown type: %s", rawType)
}

func (t MsgType) MarshalJSON() ([]byte, error) {
	name, ok := msgTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown MsgType value: %d", t)
	}
	return []byte(`"` + name + `"`), nil
}

func (m *MIDIMsg) command() (audio.Command, error) {
	if m.Number < 0 || m.Number > 127 || m.Velocity < 0 || m.Velocity > 127 || m.Channel < 0 || m.Channel > 15 {
		return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "midi message %+v", *m)
	}
	switch m.State {
	case NOTE_ON:
		return audio.NoteOn(uint8(m.Channel), uint8(m.Number), uint8(m.Velocity)), nil
	case NOTE_OFF:
		return audio.NoteOff(uint8(m.Channel), uint8(m.Number)), nil
	}
	return audio.Command{}, errors.Wrapf(audio.ErrInvalidParameter, "note state %d", m.State)
}

// ----- Server ----- //

// Server is a websocket control surface. Every client may play notes, send
// text protocol lines and request stats.
type Server struct {
	d        *Dispatcher
	stats    func() audio.Stats
	upgrader websocket.Upgrader
}

// NewServer returns a Server sending commands through d.
func NewServer(d *Dispatcher, stats func() audio.Stats) *Server {
	return &Server{
		d:     d,
		stats: stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("failed to upgrade connection: %v\n", err)
		return
	}
	defer conn.Close()
	userID := uuid.New()
	log.Printf("websocket client %s connected\n", userID)
	if err := s.reply(conn, userID, CONNECT, ConnectMsg{UserID: userID}); err != nil {
		log.Printf("writeJSON: %v\n", err)
		return
	}
	for {
		var message Envelope
		if err := conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readJSON: unexpected close: %v\n", err)
			}
			break
		}
		if err := s.handle(conn, userID, &message); err != nil {
			log.Printf("writeJSON: %v\n", err)
			break
		}
	}
	log.Printf("websocket client %s disconnected\n", userID)
}

func (s *Server) handle(conn *websocket.Conn, userID uuid.UUID, message *Envelope) error {
	switch message.Typ {
	case TEXT:
		var textMsg TextMsg
		if err := message.Unwrap(&textMsg); err != nil {
			return s.reply(conn, userID, TEXT, TextMsg{Error: fmt.Sprintf("unmarshal TextMsg: %v", err)})
		}
		if _, err := s.d.Exec(textMsg.Body); err != nil {
			return s.reply(conn, userID, TEXT, TextMsg{Body: textMsg.Body, Error: err.Error()})
		}
	case MIDI:
		var midiMsg MIDIMsg
		if err := message.Unwrap(&midiMsg); err != nil {
			return s.reply(conn, userID, TEXT, TextMsg{Error: fmt.Sprintf("unmarshal MIDIMsg: %v", err)})
		}
		c, err := midiMsg.command()
		if err != nil {
			return s.reply(conn, userID, TEXT, TextMsg{Error: err.Error()})
		}
		s.d.Send(c)
	case STATS:
		return s.reply(conn, userID, STATS, StatsMsg{Stats: s.stats()})
	default:
		return s.reply(conn, userID, TEXT, TextMsg{Error: fmt.Sprintf("unsupported message type %d", message.Typ)})
	}
	return nil
}

func (s *Server) reply(conn *websocket.Conn, userID uuid.UUID, typ MsgType, payload any) error {
	envelope := Envelope{
		ID:     uuid.New(),
		Typ:    typ,
		UserID: userID,
	}
	if err := envelope.SetPayload(payload); err != nil {
		return errors.Wrap(err, "marshal")
	}
	return conn.WriteJSON(envelope)
}

// ListenAndServe serves s at path "/" on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, s *Server) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("websocket control listening on %s\n", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrapf(err, "failed to serve %s", addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error while shutting down websocket server: %v\n", err)
	}
	log.Println("ListenAndServe() ended.")
	return nil
}
