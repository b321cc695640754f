// Package rpc bridges swapcli's websocket connections onto the bus, each
// connection registering as its own bus.ClientId so replies route back to
// the right socket the same way a Peer connection's replies route back to
// the right remote address.
package rpc

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/farcasterd/swapd/bus"
)

const DefaultAddr = "127.0.0.1:7221"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the bus to local CLI clients over a websocket, one
// connection per bus.ClientId.
type Server struct {
	router *bus.Router
	nonce  uint64
}

func NewServer(router *bus.Router) *Server {
	return &Server{router: router}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	nonce := atomic.AddUint64(&s.nonce, 1)
	id := bus.ClientId(nonce)
	endpoints, inbox := s.router.Register(id)
	defer s.router.Unregister(id)

	go s.drainToSocket(conn, inbox)
	s.drainFromSocket(conn, id, endpoints)
}

func (s *Server) drainFromSocket(conn *websocket.Conn, id bus.ServiceId, endpoints bus.Endpoints) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := bus.DecodeBytes(data)
		if err != nil {
			continue
		}
		lane := laneOf(msg)
		if err := endpoints.SendTo(lane, bus.FarcasterId(), msg); err != nil {
			fail := bus.Failure{Info: fmt.Sprintf("rpc: %v", err)}
			if encoded, encErr := bus.EncodeBytes(fail); encErr == nil {
				conn.WriteMessage(websocket.BinaryMessage, encoded)
			}
		}
	}
}

func (s *Server) drainToSocket(conn *websocket.Conn, inbox <-chan bus.Envelope) {
	for env := range inbox {
		encoded, err := bus.EncodeBytes(env.Msg)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
			return
		}
	}
}

func laneOf(msg bus.BusMsg) bus.Lane {
	switch msg.Family() {
	case bus.FamilyInfo:
		return bus.Info
	case bus.FamilySync:
		return bus.Sync
	default:
		return bus.Ctl
	}
}
