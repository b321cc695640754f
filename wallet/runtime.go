package wallet

import (
	swapd "github.com/farcasterd/swapd"
	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/checkpoint"
)

// Runtime is the singleton key-custody service. It never talks to any
// service but Farcaster, and every request it answers is gated by the
// shared capability token minted at startup.
type Runtime struct {
	endpoints bus.Endpoints
	token     bus.Token
	secrets   *NodeSecrets
	store     *checkpoint.Store
	testnet   bool
}

// New builds a wallet Runtime. token is the capability Farcaster generated
// at startup and handed to Wallet out-of-band (never over the bus itself).
func New(endpoints bus.Endpoints, token bus.Token, secrets *NodeSecrets, store *checkpoint.Store, testnet bool) *Runtime {
	return &Runtime{endpoints: endpoints, token: token, secrets: secrets, store: store, testnet: testnet}
}

// Handle dispatches one Ctl-lane message; Wallet has no Info or Sync
// surface, matching the original implementation's single-bus Handler.
func (r *Runtime) Handle(lane bus.Lane, source bus.ServiceId, msg bus.BusMsg) error {
	if lane != bus.Ctl {
		return bus.ErrLaneMismatch
	}
	req, ok := msg.(bus.CtlMsg)
	if !ok {
		return bus.ErrLaneMismatch
	}
	return r.handleCtl(source, req)
}

func (r *Runtime) handleCtl(source bus.ServiceId, req bus.CtlMsg) error {
	switch m := req.(type) {
	case bus.Hello:
		log.Debugf("wallet: received hello from %s", source)
		return nil

	case bus.CreateSwapKeys:
		if !m.Token.Equal(r.token) {
			log.Errorf("wallet: rejected CreateSwapKeys: invalid token")
			return r.rejectInvalidToken()
		}
		index, err := r.secrets.NextWalletIndex()
		if err != nil {
			log.Errorf("wallet: %v", err)
			return nil
		}
		km, err := NewKeyManager(r.secrets.walletSeed, index, r.testnet)
		if err != nil {
			log.Errorf("wallet: deriving key manager: %v", err)
			return nil
		}
		return r.endpoints.SendTo(bus.Ctl, bus.FarcasterId(), bus.SwapKeys{
			KeyManagerBlob: km.Marshal(),
			Offer:          m.Offer,
		})

	case bus.GetKeys:
		if !m.Token.Equal(r.token) {
			log.Errorf("wallet: rejected GetKeys: invalid token")
			return r.rejectInvalidToken()
		}
		return r.endpoints.SendTo(bus.Ctl, bus.FarcasterId(), bus.Keys{
			NodeSecretKey: r.secrets.PeerSecretKey(),
			NodeId:        r.secrets.NodeID(),
		})

	default:
		log.Warnf("wallet: ctl request not supported from %s: %T", source, req)
		return nil
	}
}

// rejectInvalidToken reports a token mismatch to Farcaster over Info,
// leaving wallet_counter and every other piece of state untouched.
func (r *Runtime) rejectInvalidToken() error {
	invalidToken := swapd.NewInvalidToken()
	return r.endpoints.SendTo(bus.Info, bus.FarcasterId(), bus.Failure{
		Code: invalidToken.Code(),
		Info: invalidToken.Error(),
	})
}
