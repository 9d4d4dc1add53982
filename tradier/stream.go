package tradier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/stream"
)

// marketSession owns one market-events WebSocket connection. It decodes
// quote frames into core points, reports undecodable frames and socket
// errors on the error stream, and drops other frame types such as
// heartbeats; the read loop exits when the context is cancelled or the
// socket drops.
type marketSession struct {
	sessionID string
	conn      *websocket.Conn

	points *stream.Stream[market.Point]
	errors *stream.Stream[*broker.Error]
}

func dialMarketSession(ctx context.Context, sessionID string, points *stream.Stream[market.Point], errors *stream.Stream[*broker.Error]) (*marketSession, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, StreamURL, nil)
	if err != nil {
		return nil, err
	}
	return &marketSession{
		sessionID: sessionID,
		conn:      conn,
		points:    points,
		errors:    errors,
	}, nil
}

// subscribeMsg is the control frame that sets the watched symbol list. The
// server replaces the previous list wholesale on every send.
type subscribeMsg struct {
	Symbols   []string `json:"symbols"`
	SessionID string   `json:"sessionid"`
	Filter    []string `json:"filter"`
	LineBreak bool     `json:"linebreak"`
}

func (s *marketSession) subscribe(symbols []string) error {
	return s.conn.WriteJSON(subscribeMsg{
		Symbols:   symbols,
		SessionID: s.sessionID,
		Filter:    []string{"quote"},
		LineBreak: true,
	})
}

// readLoop pumps frames until the socket closes or ctx is done. Frames that
// fail to decode are dropped with a parse error; the loop keeps going.
func (s *marketSession) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.errors.Created(broker.Connectionf("market stream: %v", err))
			}
			return
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			s.errors.Created(broker.Parsef("market stream frame: %v", err))
			continue
		}

		switch probe.Type {
		case "quote":
			var q quoteMsg
			if err := json.Unmarshal(data, &q); err != nil {
				s.errors.Created(broker.Parsef("quote frame: %v", err))
				continue
			}
			if q.Symbol == "" {
				continue
			}
			s.points.Created(pointFromQuote(q))

		default:
			// heartbeat and summary frames are dropped
		}
	}
}

func (s *marketSession) close() {
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.conn.Close()
}
