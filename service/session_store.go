package service

import (
	"sync"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/model"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Session 单个编辑会话的状态。mu 串行化同一会话上的交互。
type Session struct {
	mu          sync.Mutex
	ID          string
	Workspace   *Workspace
	Edit        model.EditState
	Corrections int
	CreatedAt   time.Time
	lastAccess  time.Time
}

// Info 会话概要，调用方需持有 s.mu
func (s *Session) Info() *model.SessionInfo {
	ws := s.Workspace
	hi := ws.Working.Bounds().Size()
	disp := ws.DisplaySize()
	return &model.SessionInfo{
		ID:            s.ID,
		ContentHash:   ws.ContentHash,
		SourceWidth:   ws.SourceSize.X,
		SourceHeight:  ws.SourceSize.Y,
		Width:         hi.X,
		Height:        hi.Y,
		DisplayWidth:  disp.X,
		DisplayHeight: disp.Y,
		Corrections:   s.Corrections,
		Edit:          s.Edit,
		CreatedAt:     s.CreatedAt,
	}
}

// SessionStore 内存会话表：空闲超过 ttl 的会话由定时任务清理，
// 数量超过上限时淘汰最久未访问的会话。
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	cron *cron.Cron
}

func NewSessionStore(cfg *config.SessionConfig) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		ttl:         cfg.TTL,
		maxSessions: cfg.MaxSessions,
		now:         time.Now,
	}
}

// Start 按 cron 表达式（或 @every 间隔）启动过期清理
func (st *SessionStore) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { st.Sweep() }); err != nil {
		return err
	}
	c.Start()
	st.cron = c
	return nil
}

func (st *SessionStore) Stop() {
	if st.cron != nil {
		<-st.cron.Stop().Done()
	}
}

// Create 为工作区分配新会话
func (st *SessionStore) Create(ws *Workspace) *Session {
	now := st.now()
	s := &Session{
		ID:         utils.GenerateID(),
		Workspace:  ws,
		Edit:       model.DefaultEditState(),
		CreatedAt:  now,
		lastAccess: now,
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	for len(st.sessions) >= st.maxSessions {
		st.evictOldestLocked()
	}
	st.sessions[s.ID] = s
	return s
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastAccess = st.now()
	return s, nil
}

func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep 删除空闲超时的会话，返回删除数量
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	deadline := st.now().Add(-st.ttl)
	removed := 0
	for id, s := range st.sessions {
		if s.lastAccess.Before(deadline) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		utils.Logger.Info("expired sessions removed",
			zap.Int("removed", removed),
			zap.Int("remaining", len(st.sessions)))
	}
	return removed
}

func (st *SessionStore) evictOldestLocked() {
	var oldest *Session
	for _, s := range st.sessions {
		if oldest == nil || s.lastAccess.Before(oldest.lastAccess) {
			oldest = s
		}
	}
	if oldest == nil {
		return
	}
	delete(st.sessions, oldest.ID)
	utils.Logger.Info("session evicted", zap.String("session_id", oldest.ID))
}
