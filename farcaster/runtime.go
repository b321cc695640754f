package farcaster

import (
	"context"
	"fmt"
	"time"

	swapd "github.com/farcasterd/swapd"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
	"github.com/farcasterd/swapd/peer"
	"github.com/farcasterd/swapd/wallet"
)

const keyExchangeTimeout = 5 * time.Second

// Supervisor is the Farcaster service: the process's sole long-lived owner
// of the capability Token, the child-service registry, and the offer book.
// It is itself a bus service (identity bus.FarcasterId()) but runs its own
// hand-rolled read loop rather than going through registry.run, since
// answering OpenSwapWith/AcceptSwapFrom needs to synchronously await a
// Wallet reply without blocking behind its own inbox.
type Supervisor struct {
	router    *bus.Router
	endpoints bus.Endpoints
	inbox     <-chan bus.Envelope

	token   bus.Token
	testnet bool
	store   *checkpoint.Store

	registry *registry
	offers   *offerBook
	addrs    *addrBook
	metrics  *Metrics
	nat      *natTraversal

	chainEndpoints ChainEndpoints
	syncers        *syncerPool

	listeners map[string]*peer.Listener

	secrets *wallet.NodeSecrets
	nodeID  [33]byte

	keyReplies chan bus.BusMsg

	ctx    context.Context
	cancel context.CancelFunc
	started time.Time
}

// Config bundles everything Supervisor needs at construction that isn't
// generated fresh at startup (the Token is; see New).
type Config struct {
	Testnet        bool
	ChainEndpoints ChainEndpoints
	AddrBookDir    string
}

// New constructs a Supervisor, registers it on router under FarcasterId,
// spawns the Wallet service, and fetches this node's long-term identity
// key before returning -- mirroring the original's startup sequence of
// generating the Token, handing it to Wallet, and fetching NodeInfo's
// NodeId once up front.
func New(ctx context.Context, router *bus.Router, secrets *wallet.NodeSecrets, store *checkpoint.Store, cfg Config) (*Supervisor, error) {
	token, err := bus.NewToken()
	if err != nil {
		return nil, fmt.Errorf("farcaster: generating token: %w", err)
	}
	log.Debugf("farcaster: capability token generated")

	innerCtx, cancel := context.WithCancel(ctx)
	f := &Supervisor{
		router:         router,
		token:          token,
		testnet:        cfg.Testnet,
		store:          store,
		registry:       newRegistry(router),
		offers:         newOfferBook(),
		addrs:          newAddrBook(cfg.AddrBookDir),
		metrics:        NewMetrics(),
		chainEndpoints: cfg.ChainEndpoints,
		syncers:        newSyncerPool(),
		listeners:      make(map[string]*peer.Listener),
		secrets:        secrets,
		keyReplies:     make(chan bus.BusMsg, 1),
		ctx:            innerCtx,
		cancel:         cancel,
		started:        time.Now(),
	}

	f.endpoints, f.inbox = f.router.Register(bus.FarcasterId())
	f.addrs.start()

	walletEndpoints, walletInbox := f.registry.register(bus.WalletId())
	w := wallet.New(walletEndpoints, token, secrets, store, cfg.Testnet)
	f.registry.run(bus.WalletId(), walletInbox, w.Handle)

	nodeID, err := f.fetchNodeID()
	if err != nil {
		return nil, fmt.Errorf("farcaster: fetching node identity from wallet: %w", err)
	}
	f.nodeID = nodeID

	if nat, err := discoverGateway(); err == nil {
		f.nat = nat
	} else {
		log.Debugf("farcaster: no NAT traversal available: %v", err)
	}

	return f, nil
}

// fetchNodeID performs the one synchronous GetKeys round trip needed at
// startup, reading directly off f.inbox before Run starts draining it --
// safe because nothing else can have sent Farcaster a message yet.
func (f *Supervisor) fetchNodeID() ([33]byte, error) {
	if err := f.endpoints.SendTo(bus.Ctl, bus.WalletId(), bus.GetKeys{Token: f.token}); err != nil {
		return [33]byte{}, err
	}
	timer := time.NewTimer(keyExchangeTimeout)
	defer timer.Stop()
	for {
		select {
		case env := <-f.inbox:
			if keys, ok := env.Msg.(bus.Keys); ok {
				return keys.NodeId, nil
			}
		case <-timer.C:
			return [33]byte{}, swapd.NewTimeout("fetching node identity")
		}
	}
}

// Run is Farcaster's event loop. It intercepts the Wallet's CreateSwapKeys
// reply to satisfy a pending requestSwapKeys call before falling through to
// normal Ctl/Info dispatch, giving the single synchronous request/response
// point spec section 5 calls out without a second goroutine.
func (f *Supervisor) Run() {
	for {
		select {
		case <-f.ctx.Done():
			return
		case env, ok := <-f.inbox:
			if !ok {
				return
			}
			if env.Source.IsWallet() {
				if _, isSwapKeys := env.Msg.(bus.SwapKeys); isSwapKeys {
					f.deliverKeyReply(env.Msg)
					continue
				}
				if _, isFailure := env.Msg.(bus.Failure); isFailure {
					f.deliverKeyReply(env.Msg)
					continue
				}
			}
			if err := f.dispatch(env); err != nil {
				log.Warnf("farcaster: handling %T from %s: %v", env.Msg, env.Source, err)
			}
			if _, ok := env.Msg.(bus.Terminate); ok {
				return
			}
		}
	}
}

// Metrics exposes the Prometheus registry so the daemon's HTTP server can
// mount it under /metrics.
func (f *Supervisor) Metrics() *Metrics { return f.metrics }

func (f *Supervisor) deliverKeyReply(msg bus.BusMsg) {
	select {
	case f.keyReplies <- msg:
	default:
		log.Warnf("farcaster: dropping unexpected wallet reply %T, no pending request", msg)
	}
}

func (f *Supervisor) dispatch(env bus.Envelope) error {
	switch env.Lane {
	case bus.Ctl:
		if m, ok := env.Msg.(bus.CtlMsg); ok {
			return f.handleCtl(env.Source, m)
		}
	case bus.Info:
		if m, ok := env.Msg.(bus.InfoMsg); ok {
			return f.handleInfo(env.Source, m)
		}
	}
	return bus.ErrLaneMismatch
}

// requestSwapKeys performs the Farcaster<->Wallet key exchange: send
// CreateSwapKeys, then block this single-threaded loop on keyReplies (fed
// by Run's interception above) until a reply arrives or 5 seconds elapse.
func (f *Supervisor) requestSwapKeys(offer bus.PublicOffer) ([]byte, error) {
	if err := f.endpoints.SendTo(bus.Ctl, bus.WalletId(), bus.CreateSwapKeys{Offer: offer, Token: f.token}); err != nil {
		return nil, err
	}
	select {
	case msg := <-f.keyReplies:
		switch m := msg.(type) {
		case bus.SwapKeys:
			return m.KeyManagerBlob, nil
		case bus.Failure:
			return nil, fmt.Errorf("wallet: %s: %s", swapd.ErrorKind(m.Code), m.Info)
		}
		return nil, fmt.Errorf("farcaster: unexpected wallet reply %T", msg)
	case <-time.After(keyExchangeTimeout):
		return nil, swapd.NewTimeout("CreateSwapKeys")
	}
}
