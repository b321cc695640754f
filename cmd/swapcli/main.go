// Command swapcli is the CLI client for swapd, talking to a running
// daemon over rpc.Client the way dcrlncli talks to dcrlnd's gRPC server.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	"github.com/farcasterd/swapd/bus"
	"github.com/farcasterd/swapd/rpc"
)

const defaultTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "swapcli"
	app.Usage = "control a running swapd"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "rpcserver", Value: rpc.DefaultAddr, Usage: "host:port of swapd's rpc server"},
	}
	app.Commands = []cli.Command{
		infoCommand,
		peersCommand,
		swapsCommand,
		listenCommand,
		connectCommand,
		pingCommand,
		makeCommand,
		takeCommand,
		fundCommand,
		pedicideCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCode classifies a returned error into the CLI's three non-zero exit
// codes: 1 for a Failure the daemon itself returned, 2 for bad usage caught
// before any call, 3 for a transport/rpc failure reaching it at all,
// including a call that timed out.
type exitCode int

const (
	exitOK exitCode = iota
	exitDaemonFailure
	exitUsage
	exitTransport
)

type cliError struct {
	code exitCode
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func exitCodeFor(err error) int {
	if ce, ok := err.(*cliError); ok {
		return int(ce.code)
	}
	return int(exitUsage)
}

func dial(c *cli.Context) (*rpc.Client, error) {
	client, err := rpc.Dial(c.GlobalString("rpcserver"))
	if err != nil {
		return nil, &cliError{code: exitTransport, err: err}
	}
	return client, nil
}

func call(c *cli.Context, req bus.BusMsg) (bus.BusMsg, error) {
	client, err := dial(c)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reply, err := client.Call(req, defaultTimeout)
	if err != nil {
		return nil, &cliError{code: exitTransport, err: err}
	}
	if f, ok := reply.(bus.Failure); ok {
		return nil, &cliError{code: exitDaemonFailure, err: fmt.Errorf("%s", f.Info)}
	}
	return reply, nil
}

var infoCommand = cli.Command{
	Name:  "info",
	Usage: "show node identity, listeners, peers and active swaps",
	Action: func(c *cli.Context) error {
		reply, err := call(c, bus.GetInfo{})
		if err != nil {
			return err
		}
		info, ok := reply.(bus.NodeInfo)
		if !ok {
			return fmt.Errorf("unexpected reply %T", reply)
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"node id", fmt.Sprintf("%x", info.NodeId)})
		t.AppendRow(table.Row{"listens", info.Listens})
		t.AppendRow(table.Row{"uptime", info.Uptime})
		t.AppendRow(table.Row{"peers", len(info.Peers)})
		t.AppendRow(table.Row{"swaps", len(info.Swaps)})
		t.Render()
		return nil
	},
}

var peersCommand = cli.Command{
	Name:  "peers",
	Usage: "list connected peer addresses",
	Action: func(c *cli.Context) error {
		reply, err := call(c, bus.ListPeers{})
		if err != nil {
			return err
		}
		list, ok := reply.(bus.PeerList)
		if !ok {
			return fmt.Errorf("unexpected reply %T", reply)
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"address"})
		for _, addr := range list.Addrs {
			t.AppendRow(table.Row{addr})
		}
		t.Render()
		return nil
	},
}

var swapsCommand = cli.Command{
	Name:  "ls",
	Usage: "list active swap ids",
	Action: func(c *cli.Context) error {
		reply, err := call(c, bus.ListSwaps{})
		if err != nil {
			return err
		}
		list, ok := reply.(bus.SwapList)
		if !ok {
			return fmt.Errorf("unexpected reply %T", reply)
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"swap id"})
		for _, id := range list.Ids {
			t.AppendRow(table.Row{fmt.Sprintf("%x", id)})
		}
		t.Render()
		return nil
	},
}

var listenCommand = cli.Command{
	Name:      "listen",
	Usage:     "accept inbound peer connections on addr",
	ArgsUsage: "<addr>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return &cliError{code: exitUsage, err: fmt.Errorf("expected exactly one address argument")}
		}
		_, err := call(c, bus.Listen{Addr: c.Args().Get(0)})
		return err
	},
}

var connectCommand = cli.Command{
	Name:      "connect",
	Usage:     "dial a peer at addr",
	ArgsUsage: "<addr>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return &cliError{code: exitUsage, err: fmt.Errorf("expected exactly one address argument")}
		}
		_, err := call(c, bus.ConnectPeer{Addr: c.Args().Get(0)})
		return err
	},
}

var pingCommand = cli.Command{
	Name:  "ping",
	Usage: "check whether swapd is reachable",
	Action: func(c *cli.Context) error {
		client, err := dial(c)
		if err != nil {
			return err
		}
		defer client.Close()
		if _, err := client.Call(bus.GetInfo{}, defaultTimeout); err != nil {
			return &cliError{code: exitTransport, err: err}
		}
		fmt.Println("pong")
		return nil
	},
}

var makeCommand = cli.Command{
	Name:  "make",
	Usage: "propose a swap offer to a connected peer",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "peer", Usage: "peer address to send the offer to"},
		cli.BoolFlag{Name: "alice", Usage: "take the Alice role in the swap"},
	},
	Action: func(c *cli.Context) error {
		tempID, err := bus.NewTempSwapId()
		if err != nil {
			return &cliError{code: exitUsage, err: err}
		}
		req := bus.OpenSwapWith{CreateSwap: bus.CreateSwap{
			TempSwapId: tempID,
			Offer:      bus.PublicOffer{RoleIsAlice: c.Bool("alice")},
			PeerId:     bus.PeerId(c.String("peer")),
		}}
		_, err = call(c, req)
		return err
	},
}

var takeCommand = cli.Command{
	Name:  "take",
	Usage: "accept a swap offer from a connected peer",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "peer", Usage: "peer address the offer came from"},
		cli.BoolFlag{Name: "alice", Usage: "the offer's maker holds the Alice role"},
	},
	Action: func(c *cli.Context) error {
		tempID, err := bus.NewTempSwapId()
		if err != nil {
			return &cliError{code: exitUsage, err: err}
		}
		req := bus.AcceptSwapFrom{CreateSwap: bus.CreateSwap{
			TempSwapId: tempID,
			Offer:      bus.PublicOffer{RoleIsAlice: c.Bool("alice")},
			PeerId:     bus.PeerId(c.String("peer")),
		}}
		_, err = call(c, req)
		return err
	},
}

var fundCommand = cli.Command{
	Name:      "fund",
	Usage:     "notify swapd that a swap's funding transaction broadcast",
	ArgsUsage: "<swap-id-hex> <txid-hex> <vout>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return &cliError{code: exitUsage, err: fmt.Errorf("expected swap id, txid, and vout arguments")}
		}
		swapID, err := decodeSwapId(c.Args().Get(0))
		if err != nil {
			return &cliError{code: exitUsage, err: err}
		}
		txid, err := decodeTxid(c.Args().Get(1))
		if err != nil {
			return &cliError{code: exitUsage, err: err}
		}
		vout, err := strconv.ParseUint(c.Args().Get(2), 10, 32)
		if err != nil {
			return &cliError{code: exitUsage, err: fmt.Errorf("parsing vout: %w", err)}
		}
		_, err = call(c, bus.FundSwap{SwapId: swapID, Txid: txid, Vout: uint32(vout)})
		return err
	},
}

func decodeSwapId(s string) (bus.SwapId, error) {
	var id bus.SwapId
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("swap id must be %d hex bytes", len(id))
	}
	copy(id[:], raw)
	return id, nil
}

func decodeTxid(s string) ([32]byte, error) {
	var txid [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(txid) {
		return txid, fmt.Errorf("txid must be %d hex bytes", len(txid))
	}
	copy(txid[:], raw)
	return txid, nil
}

var pedicideCommand = cli.Command{
	Name:  "pedicide",
	Usage: "immediately kill every child service of swapd",
	Action: func(c *cli.Context) error {
		_, err := call(c, bus.Pedicide{})
		return err
	},
}
