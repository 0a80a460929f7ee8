package gradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrUnexpectedMessage is returned for queue messages this client does not
// understand.
var ErrUnexpectedMessage = errors.New("gradio: unexpected queue message")

// AppError is a failure reported by the app itself.
type AppError struct {
	Message string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return "gradio: app reported failure"
	}
	return "gradio: " + e.Message
}

// Message is a queue event. It is either a StatusMessage or a DataMessage.
type Message interface {
	isMessage()
}

// StatusMessage reports queue progress. Log is set for log messages.
type StatusMessage struct {
	Stage     string
	Rank      int
	QueueSize int
	ETA       float64
	Log       string
}

// DataMessage carries component outputs. Final is set for the
// process_completed message.
type DataMessage struct {
	Data  []json.RawMessage
	Final bool
}

func (StatusMessage) isMessage() {}
func (DataMessage) isMessage()   {}

type wireMessage struct {
	Msg       string   `json:"msg"`
	Rank      *int     `json:"rank"`
	QueueSize *int     `json:"queue_size"`
	RankETA   *float64 `json:"rank_eta"`
	Log       string   `json:"log"`
	Success   *bool    `json:"success"`
	Output    *struct {
		Data  []json.RawMessage `json:"data"`
		Error *string           `json:"error"`
	} `json:"output"`
}

type hashReply struct {
	FnIndex     int    `json:"fn_index"`
	SessionHash string `json:"session_hash"`
}

type dataReply struct {
	Data        []any  `json:"data"`
	EventData   any    `json:"event_data"`
	FnIndex     int    `json:"fn_index"`
	SessionHash string `json:"session_hash"`
}

// Stream is one queued call. Read it with Next until io.EOF and Close it.
type Stream struct {
	client *Client
	conn   *websocket.Conn
	fn     int
	data   []any
	done   bool
	stop   func() bool
}

func (c *Client) queueURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return strings.TrimRight(u.String(), "/") + "/queue/join"
}

// Submit joins the queue for fnIndex. Cancelling ctx closes the socket.
func (c *Client) Submit(ctx context.Context, fnIndex int, data []any) (*Stream, error) {
	if data == nil {
		data = []any{}
	}
	endpoint := c.queueURL()
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			// the dialer leaves the body readable on a failed handshake
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, &HTTPError{
				Method:     http.MethodGet,
				URL:        endpoint,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
				Err:        err,
			}
		}
		return nil, fmt.Errorf("join queue: %w", err)
	}
	c.log.Debug("gradio queue joined", "fn_index", fnIndex)
	s := &Stream{client: c, conn: conn, fn: fnIndex, data: data}
	s.stop = context.AfterFunc(ctx, func() { conn.Close() })
	return s, nil
}

// Next returns the next status or data message. After the final data
// message it returns io.EOF.
func (s *Stream) Next() (Message, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		var m wireMessage
		if err := s.conn.ReadJSON(&m); err != nil {
			s.done = true
			return nil, fmt.Errorf("read queue message: %w", err)
		}
		log := s.client.log.With("fn_index", s.fn, "stage", m.Msg)
		switch m.Msg {
		case "send_hash":
			if err := s.conn.WriteJSON(hashReply{FnIndex: s.fn, SessionHash: s.client.session}); err != nil {
				s.done = true
				return nil, fmt.Errorf("send hash: %w", err)
			}
		case "send_data":
			reply := dataReply{Data: s.data, FnIndex: s.fn, SessionHash: s.client.session}
			if err := s.conn.WriteJSON(reply); err != nil {
				s.done = true
				return nil, fmt.Errorf("send data: %w", err)
			}
		case "queue_full":
			s.done = true
			return nil, &AppError{Message: "queue full"}
		case "estimation", "process_starts", "heartbeat", "progress", "log":
			st := StatusMessage{Stage: m.Msg, Log: m.Log}
			if m.Rank != nil {
				st.Rank = *m.Rank
			}
			if m.QueueSize != nil {
				st.QueueSize = *m.QueueSize
			}
			if m.RankETA != nil {
				st.ETA = *m.RankETA
			}
			log.Debug("gradio status", "rank", st.Rank, "queue_size", st.QueueSize)
			return st, nil
		case "process_generating", "process_completed":
			final := m.Msg == "process_completed"
			if m.Success != nil && !*m.Success {
				s.done = true
				msg := ""
				if m.Output != nil && m.Output.Error != nil {
					msg = *m.Output.Error
				}
				return nil, &AppError{Message: msg}
			}
			s.done = final
			dm := DataMessage{Final: final}
			if m.Output != nil {
				dm.Data = m.Output.Data
			}
			log.Debug("gradio data", "slots", len(dm.Data), "final", final)
			return dm, nil
		default:
			s.done = true
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedMessage, m.Msg)
		}
	}
}

// Close releases the socket.
func (s *Stream) Close() error {
	s.done = true
	if s.stop != nil {
		s.stop()
	}
	return s.conn.Close()
}
