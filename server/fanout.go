package server

// Outbound 单个连接的出站队列，由连接适配器实现。
// Enqueue 必须非阻塞：队列满时丢弃并返回 false。
type Outbound interface {
	Enqueue(b []byte) bool
	Close()
}

// registration 连接注册；playerID 为空表示主持端
type registration struct {
	conn     Outbound
	playerID string
	messages [][]byte
	ack      chan struct{}
}

type departure struct {
	conn Outbound
	ack  chan struct{}
}

// delivery 出站广播；to 非空时为单播，否则广播给除 excludeID 外的所有连接
type delivery struct {
	payload   []byte
	excludeID string
	to        Outbound
}

func (r *Room) startLoop() {
	r.loopOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

// run 单消费者循环：注册、注销、广播严格按到达顺序处理
func (r *Room) run() {
	defer r.wg.Done()
	for {
		select {
		case reg := <-r.register:
			r.handleRegister(reg)
		case d := <-r.unregister:
			r.handleUnregister(d)
		case ev := <-r.events:
			r.fanOut(ev)
		case <-r.done:
			r.closeConnections()
			return
		}
	}
}

// attach 提交注册并等待循环确认，返回后连接已在线
func (r *Room) attach(reg registration) error {
	reg.ack = make(chan struct{})
	select {
	case r.register <- reg:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case <-reg.ack:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// publish 事件类消息：排队等待，房间关闭时放弃
func (r *Room) publish(d delivery) {
	if d.payload == nil {
		return
	}
	select {
	case r.events <- d:
	case <-r.done:
	}
}

// publishSnapshot 周期快照：房间队列满则直接丢弃，下一个 Tick 会自愈
func (r *Room) publishSnapshot(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case r.events <- delivery{payload: payload}:
		return true
	case <-r.done:
		return false
	default:
		r.metrics.IncSnapshotsDropped()
		return false
	}
}

func (r *Room) handleRegister(reg registration) {
	r.connMu.Lock()
	var old Outbound
	if reg.playerID == "" {
		old = r.host
		r.host = reg.conn
	} else {
		old = r.conns[reg.playerID]
		r.conns[reg.playerID] = reg.conn
	}
	r.activeConns.Store(int32(r.countLocked()))
	r.connMu.Unlock()

	// 同一身份的新连接顶替旧连接
	if old != nil && old != reg.conn {
		old.Close()
	}
	if reg.playerID != "" {
		r.mu.Lock()
		if p, ok := r.players[reg.playerID]; ok {
			p.State = StateActive
		}
		r.mu.Unlock()
	}
	for _, msg := range reg.messages {
		if msg != nil {
			r.deliver(reg.conn, msg)
		}
	}
	close(reg.ack)
}

func (r *Room) handleUnregister(d departure) {
	defer close(d.ack)

	r.connMu.Lock()
	playerID, found := "", false
	if r.host != nil && r.host == d.conn {
		r.host = nil
		found = true
	}
	for id, c := range r.conns {
		if c == d.conn {
			delete(r.conns, id)
			playerID, found = id, true
			break
		}
	}
	r.activeConns.Store(int32(r.countLocked()))
	r.connMu.Unlock()

	if !found {
		return
	}
	r.mu.Lock()
	if p, ok := r.players[playerID]; ok {
		p.State = StateDisconnected
	}
	r.touchLocked()
	r.mu.Unlock()

	if playerID == "" {
		Log.Infow("host disconnected", "room", r.Code)
	} else {
		Log.Infow("player disconnected", "room", r.Code, "player", playerID)
	}
}

// fanOut 只在 run 循环中调用，可直接读取连接表
func (r *Room) fanOut(d delivery) {
	if d.to != nil {
		r.deliver(d.to, d.payload)
		return
	}
	if r.host != nil {
		r.deliver(r.host, d.payload)
	}
	for id, c := range r.conns {
		if id == d.excludeID {
			continue
		}
		r.deliver(c, d.payload)
	}
	r.metrics.IncBroadcasts()
}

func (r *Room) deliver(c Outbound, b []byte) {
	if !c.Enqueue(b) {
		r.metrics.IncOutboundDropped()
		Log.Debugw("outbound queue full, message dropped", "room", r.Code)
	}
}

func (r *Room) closeConnections() {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.host != nil {
		r.host.Close()
		r.host = nil
	}
	for id, c := range r.conns {
		c.Close()
		delete(r.conns, id)
	}
	r.activeConns.Store(0)
}

func (r *Room) countLocked() int {
	n := len(r.conns)
	if r.host != nil {
		n++
	}
	return n
}
