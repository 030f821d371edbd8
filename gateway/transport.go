package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const TransportBufferSize = 32

// wire opcodes
const (
	opDispatch            = 0
	opHeartbeat           = 1
	opIdentify            = 2
	opResume              = 6
	opReconnect           = 7
	opRequestGuildMembers = 8
	opInvalidSession      = 9
	opHello               = 10
	opHeartbeatAck        = 11
)

type gatewayFrame struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence int64           `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

type helloFrame struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyFrame struct {
	Token      string  `json:"token"`
	Intents    Intents `json:"intents"`
	Shard      []int   `json:"shard,omitempty"`
	Properties struct {
		OS      string `json:"os"`
		Browser string `json:"browser"`
		Device  string `json:"device"`
	} `json:"properties"`
}

type resumeFrame struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

type requestGuildMembersFrame struct {
	GuildID   Snowflake   `json:"guild_id"`
	Query     *string     `json:"query,omitempty"`
	Limit     int         `json:"limit"`
	Presences bool        `json:"presences,omitempty"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
	Nonce     string      `json:"nonce,omitempty"`
}

// anchored at creation so that connection setup time counts against the
// reconnect delay
type reconnect struct {
	endTime time.Time
}

func newReconnect(timeout time.Duration) *reconnect {
	return &reconnect{
		endTime: time.Now().Add(timeout),
	}
}

func (self *reconnect) After() <-chan time.Time {
	return time.After(time.Until(self.endTime))
}

type GatewayConnSettings struct {
	WsHandshakeTimeout time.Duration
	HelloTimeout       time.Duration
	ReconnectTimeout   time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	ShardCount         int
}

func DefaultGatewayConnSettings() *GatewayConnSettings {
	return &GatewayConnSettings{
		WsHandshakeTimeout: 2 * time.Second,
		HelloTimeout:       5 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        90 * time.Second,
		ShardCount:         1,
	}
}

// GatewayConn is one persistent gateway connection. It runs the identify
// and heartbeat protocol, feeds every dispatch frame into the state engine
// and carries member chunk requests back up the same socket.
type GatewayConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	state   *State
	url     string
	token   string
	shardID int

	settings *GatewayConnSettings

	mutex    sync.Mutex
	send     chan []byte
	sequence int64
}

func NewGatewayConnWithDefaults(
	ctx context.Context,
	state *State,
	url string,
	token string,
	shardID int,
) *GatewayConn {
	return NewGatewayConn(ctx, state, url, token, shardID, DefaultGatewayConnSettings())
}

func NewGatewayConn(
	ctx context.Context,
	state *State,
	url string,
	token string,
	shardID int,
	settings *GatewayConnSettings,
) *GatewayConn {
	cancelCtx, cancel := context.WithCancel(ctx)
	conn := &GatewayConn{
		ctx:      cancelCtx,
		cancel:   cancel,
		state:    state,
		url:      url,
		token:    token,
		shardID:  shardID,
		settings: settings,
	}
	go conn.run()
	return conn
}

// RequestMemberChunks satisfies the chunker used by the state engine. The
// request rides the same socket as the event stream, correlated by nonce.
func (self *GatewayConn) RequestMemberChunks(ctx context.Context, shardID int, request *MemberChunkRequest) error {
	frame := &requestGuildMembersFrame{
		GuildID:   request.GuildID,
		Limit:     request.Limit,
		Presences: request.Presences,
		UserIDs:   request.UserIDs,
		Nonce:     request.Nonce,
	}
	if len(request.UserIDs) == 0 {
		// an empty query with limit 0 means the full member list
		query := request.Query
		frame.Query = &query
	}
	message, err := encodeFrame(opRequestGuildMembers, frame)
	if err != nil {
		return err
	}

	self.mutex.Lock()
	send := self.send
	self.mutex.Unlock()
	if send == nil {
		return fmt.Errorf("not connected")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-self.ctx.Done():
		return fmt.Errorf("connection closed")
	case send <- message:
		return nil
	}
}

func encodeFrame(op int, data any) ([]byte, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&gatewayFrame{
		Op:   op,
		Data: encoded,
	})
}

func (self *GatewayConn) identifyMessage() ([]byte, error) {
	identify := &identifyFrame{
		Token:   self.token,
		Intents: self.state.Intents(),
	}
	if 1 < self.settings.ShardCount {
		identify.Shard = []int{self.shardID, self.settings.ShardCount}
	}
	identify.Properties.OS = "linux"
	identify.Properties.Browser = "gateway"
	identify.Properties.Device = "gateway"
	return encodeFrame(opIdentify, identify)
}

func (self *GatewayConn) resumeMessage(sessionID string, sequence int64) ([]byte, error) {
	return encodeFrame(opResume, &resumeFrame{
		Token:     self.token,
		SessionID: sessionID,
		Sequence:  sequence,
	})
}

func (self *GatewayConn) heartbeatMessage() ([]byte, error) {
	self.mutex.Lock()
	sequence := self.sequence
	self.mutex.Unlock()
	if sequence == 0 {
		return json.Marshal(&gatewayFrame{Op: opHeartbeat, Data: json.RawMessage("null")})
	}
	return encodeFrame(opHeartbeat, sequence)
}

func (self *GatewayConn) run() {
	defer self.cancel()

	for {
		reconnect := newReconnect(self.settings.ReconnectTimeout)

		connect := func() (*websocket.Conn, time.Duration, error) {
			dialer := &websocket.Dialer{
				HandshakeTimeout: self.settings.WsHandshakeTimeout,
			}
			ws, _, err := dialer.DialContext(self.ctx, self.url, nil)
			if err != nil {
				return nil, 0, err
			}

			success := false
			defer func() {
				if !success {
					ws.Close()
				}
			}()

			ws.SetReadDeadline(time.Now().Add(self.settings.HelloTimeout))
			var frame gatewayFrame
			if err := ws.ReadJSON(&frame); err != nil {
				return nil, 0, err
			}
			if frame.Op != opHello {
				return nil, 0, fmt.Errorf("expected hello, got op %d", frame.Op)
			}
			var hello helloFrame
			if err := json.Unmarshal(frame.Data, &hello); err != nil {
				return nil, 0, err
			}
			heartbeatInterval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

			var handshake []byte
			self.mutex.Lock()
			sequence := self.sequence
			self.mutex.Unlock()
			sessionID := self.state.SessionID(self.shardID)
			if sessionID != "" && 0 < sequence {
				handshake, err = self.resumeMessage(sessionID, sequence)
			} else {
				// identify rate limit coordination lives outside the engine
				if err := self.state.callHooks(self.ctx, "before_identify"); err != nil {
					return nil, 0, err
				}
				handshake, err = self.identifyMessage()
			}
			if err != nil {
				return nil, 0, err
			}

			ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, handshake); err != nil {
				return nil, 0, err
			}

			success = true
			return ws, heartbeatInterval, nil
		}

		ws, heartbeatInterval, err := connect()
		if err != nil {
			glog.Infof("[gw]connect error shard %d = %s\n", self.shardID, err)
			select {
			case <-self.ctx.Done():
				return
			case <-reconnect.After():
				continue
			}
		}

		c := func() {
			defer ws.Close()

			handleCtx, handleCancel := context.WithCancel(self.ctx)
			defer handleCancel()

			send := make(chan []byte, TransportBufferSize)
			self.mutex.Lock()
			self.send = send
			self.mutex.Unlock()
			defer func() {
				self.mutex.Lock()
				if self.send == send {
					self.send = nil
				}
				self.mutex.Unlock()
			}()

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					case message, ok := <-send:
						if !ok {
							return
						}
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
							// a deadline timeout cannot be recovered on websocket
							glog.Infof("[gw]shard %d-> error = %s\n", self.shardID, err)
							return
						}
						glog.V(2).Infof("[gw]shard %d->\n", self.shardID)
					case <-time.After(heartbeatInterval):
						message, err := self.heartbeatMessage()
						if err != nil {
							return
						}
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
							return
						}
						glog.V(2).Infof("[gw]heartbeat shard %d->\n", self.shardID)
					}
				}
			}()

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					default:
					}

					ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
					var frame gatewayFrame
					if err := ws.ReadJSON(&frame); err != nil {
						glog.Infof("[gw]shard %d<- error = %s\n", self.shardID, err)
						return
					}

					switch frame.Op {
					case opDispatch:
						self.mutex.Lock()
						if self.sequence < frame.Sequence {
							self.sequence = frame.Sequence
						}
						self.mutex.Unlock()
						self.state.Dispatch(self.shardID, frame.Type, frame.Data)
					case opHeartbeat:
						message, err := self.heartbeatMessage()
						if err != nil {
							return
						}
						select {
						case <-handleCtx.Done():
							return
						case send <- message:
						}
					case opHeartbeatAck:
						glog.V(2).Infof("[gw]heartbeat ack shard %d<-\n", self.shardID)
					case opReconnect:
						glog.Infof("[gw]shard %d asked to reconnect\n", self.shardID)
						return
					case opInvalidSession:
						// a fresh identify is required on the next connect
						glog.Infof("[gw]shard %d session invalidated\n", self.shardID)
						self.mutex.Lock()
						self.sequence = 0
						self.mutex.Unlock()
						return
					default:
						glog.V(2).Infof("[gw]other op=%d shard %d<-\n", frame.Op, self.shardID)
					}
				}
			}()

			select {
			case <-handleCtx.Done():
			}
		}
		reconnect = newReconnect(self.settings.ReconnectTimeout)
		c()
		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
		}
	}
}

func (self *GatewayConn) Close() {
	self.cancel()
}

// ShardMux routes member chunk requests to the connection that owns the
// shard. Build the state engine against the mux first, then register each
// connection as it is started.
type ShardMux struct {
	mutex sync.Mutex
	conns map[int]*GatewayConn
}

func NewShardMux() *ShardMux {
	return &ShardMux{
		conns: map[int]*GatewayConn{},
	}
}

func (self *ShardMux) Add(shardID int, conn *GatewayConn) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	self.conns[shardID] = conn
}

func (self *ShardMux) Remove(shardID int) {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	delete(self.conns, shardID)
}

func (self *ShardMux) RequestMemberChunks(ctx context.Context, shardID int, request *MemberChunkRequest) error {
	self.mutex.Lock()
	conn := self.conns[shardID]
	self.mutex.Unlock()
	if conn == nil {
		return fmt.Errorf("no connection for shard %d", shardID)
	}
	return conn.RequestMemberChunks(ctx, shardID, request)
}
