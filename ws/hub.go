package ws

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mqy/pairchat/auth"
	"github.com/mqy/pairchat/presence"
	pb "github.com/mqy/pairchat/proto"
)

// frame overhead on top of the payload: ids, field names, json escaping.
const frameOverhead = 1024

var sessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "pairchat_ws_sessions",
	Help: "Number of open websocket sessions.",
})

func init() {
	prometheus.MustRegister(sessionsGauge)
}

// ParticipantEnsurer creates the account record of an authenticated identity on first sight.
type ParticipantEnsurer interface {
	EnsureParticipant(ctx context.Context, id string) error
}

// Hub works as a hub that manages and serves sessions.
type Hub struct {
	api        *Api
	router     IRouter
	registry   presence.Registry
	accounts   ParticipantEnsurer
	authClient auth.Client
	hstore     *HandlerStore
	readLimit  int64
	online     atomic.Bool
}

// NewHub creates a `Hub`. maxPayloadBytes bounds the size of a client frame.
func NewHub(authClient auth.Client, accounts ParticipantEnsurer, router IRouter,
	registry presence.Registry, maxPayloadBytes int) *Hub {
	h := &Hub{
		api:        NewApi(router),
		router:     router,
		registry:   registry,
		accounts:   accounts,
		authClient: authClient,
		hstore:     newHandlerStore(),
		readLimit:  int64(maxPayloadBytes + frameOverhead),
	}
	h.online.Store(true)
	return h
}

// Run blocks until ctx is done, then closes every session.
func (h *Hub) Run(ctx context.Context, stopDoneNotifyC chan<- struct{}) {
	<-ctx.Done()
	h.online.Store(false)
	glog.Infof("close connections ...")
	h.hstore.close()
	glog.Infof("close connections done")
	stopDoneNotifyC <- struct{}{}
}

// ServeHTTP handles websocket requests from the peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.online.Load() {
		http.Error(w, "This node is stopping", http.StatusServiceUnavailable)
		return
	}

	uid, err := h.authClient.Auth(r)
	if err != nil {
		glog.Errorf("ServeHTTP(): authenticate error: %v", err)
		http.Error(w, "Authenticate error", http.StatusForbidden)
		return
	}

	if err := h.accounts.EnsureParticipant(r.Context(), uid); err != nil {
		glog.Errorf("ServeHTTP(): ensure participant %s error: %v", uid, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	contacts, err := h.router.ContactIds(r.Context(), uid)
	if err != nil {
		glog.Errorf("ServeHTTP(): list contacts of %s error: %v", uid, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	sess := &pb.Session{
		Uid:        uid,
		Sid:        strings.ReplaceAll(uuid.New(), "-", ""),
		CreateTime: time.Now().Unix(),
		Ip:         getRemoteIP(r),
	}

	// If the upgrade fails, then Upgrade replies to the client with an HTTP error response.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %s, err: %s", uid, err)
		return
	}

	handler := &Handler{
		dataChan:  make(chan *SessionData, sendQueueSize),
		session:   sess,
		conn:      conn,
		readLimit: h.readLimit,
		api:       h.api,
		hub:       h,
	}

	h.addHandler(handler, contacts)

	go handler.recvLoop()
	go handler.sendLoop()
}

func (h *Hub) addHandler(handler *Handler, contacts []string) {
	h.hstore.add(handler)
	sessionsGauge.Inc()
	h.registry.Register(handler.session.Uid, handler, contacts)
	glog.V(5).Infof("session online: %s", handler)
}

func (h *Hub) delHandler(handler *Handler) {
	if h.hstore.del(handler.session.Sid) {
		sessionsGauge.Dec()
		h.registry.Unregister(handler)
	}
}

func getRemoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			slice := strings.Split(ips, ",")
			for _, x := range slice {
				if x = strings.TrimSpace(x); x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return ip
}
