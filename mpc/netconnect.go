package mpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/pkg/errors"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/sync/errgroup"
)

type Network struct {
	pid        int
	hubPid     int
	NumParties int

	Rand *Random

	// One socket per peer; every thread owns a separate Network

	conns     map[int]net.Conn
	listeners map[int]net.Listener

	// Variables to keep track of the bytes that are sent/received

	SentBytes     map[int]uint64
	ReceivedBytes map[int]uint64
	commSent      map[int]int
	commReceived  map[int]int

	loggingActive bool
}

// Dial retry policy used by Connect.
var (
	ConnectRetries    = 100
	ConnectRetryDelay = 5 * time.Second
)

func newNetwork(pid, nparties int) *Network {
	return &Network{
		conns:         make(map[int]net.Conn),
		listeners:     make(map[int]net.Listener),
		NumParties:    nparties,
		pid:           pid,
		hubPid:        1,
		SentBytes:     make(map[int]uint64),
		ReceivedBytes: make(map[int]uint64),
		commSent:      make(map[int]int),
		commReceived:  make(map[int]int),
		loggingActive: true,
	}
}

func (netObj *Network) EnableLogging() {
	netObj.loggingActive = true
}

func (netObj *Network) DisableLogging() {
	netObj.loggingActive = false
}

func (netObj *Network) UpdateSenderLog(toPid int, nbytes int) {
	if netObj.loggingActive {
		netObj.SentBytes[toPid] += uint64(nbytes)
		netObj.commSent[toPid]++
	}
}

func (netObj *Network) UpdateReceiverLog(fromPid int, nbytes int) {
	if netObj.loggingActive {
		netObj.ReceivedBytes[fromPid] += uint64(nbytes)
		netObj.commReceived[fromPid]++
	}
}

func (netObj *Network) ResetNetworkLog() {
	for key := range netObj.SentBytes {
		netObj.SentBytes[key] = 0
		netObj.commSent[key] = 0
	}
	for key := range netObj.ReceivedBytes {
		netObj.ReceivedBytes[key] = 0
		netObj.commReceived[key] = 0
	}
}

func (netObjs ParallelNetworks) ResetNetworkLog() {
	for i := range netObjs {
		netObjs[i].ResetNetworkLog()
	}
}

// TotalBytes returns the bytes sent and received over all threads.
func (netObjs ParallelNetworks) TotalBytes() (sent, received uint64) {
	for i := range netObjs {
		for _, value := range netObjs[i].SentBytes {
			sent += value
		}
		for _, value := range netObjs[i].ReceivedBytes {
			received += value
		}
	}
	return sent, received
}

func (netObjs ParallelNetworks) PrintNetworkLog() {
	netObjs.WriteNetworkLog(os.Stdout)
}

// WriteNetworkLog renders the per-peer traffic summed over all threads.
func (netObjs ParallelNetworks) WriteNetworkLog(w io.Writer) {
	if len(netObjs) == 0 {
		return
	}
	sent := make(map[int]uint64)
	received := make(map[int]uint64)
	msgSent := make(map[int]int)
	msgReceived := make(map[int]int)

	for i := range netObjs {
		for key, value := range netObjs[i].SentBytes {
			sent[key] += value
			msgSent[key] += netObjs[i].commSent[key]
		}
		for key, value := range netObjs[i].ReceivedBytes {
			received[key] += value
			msgReceived[key] += netObjs[i].commReceived[key]
		}
	}

	var peers []int
	for p := 0; p < netObjs[0].NumParties; p++ {
		if p != netObjs[0].pid {
			peers = append(peers, p)
		}
	}
	sort.Ints(peers)

	fmt.Fprintf(w, "Network log for party %d\n", netObjs[0].pid)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Peer").SetAlign(tabulate.ML)
	tab.Header("Sent").SetAlign(tabulate.MR)
	tab.Header("Msgs").SetAlign(tabulate.MR)
	tab.Header("Rcvd").SetAlign(tabulate.MR)
	tab.Header("Msgs").SetAlign(tabulate.MR)

	for _, p := range peers {
		row := tab.Row()
		row.Column(pidString(p))
		row.Column(fmt.Sprintf("%d", sent[p]))
		row.Column(fmt.Sprintf("%d", msgSent[p]))
		row.Column(fmt.Sprintf("%d", received[p]))
		row.Column(fmt.Sprintf("%d", msgReceived[p]))
	}
	tab.Print(w)
}

type Server struct {
	IpAddr string            `toml:"ipaddr"`
	Ports  map[string]string `toml:"ports"`
}

func pidString(pid int) string {
	return fmt.Sprintf("party%d", pid)
}

/* Communication set up for parallelization */

// InitCommunication creates communication channels for parallelization: channel btw each pair of machines for every thread
func InitCommunication(bindingIP string, servers map[string]Server, pid, nparties, numThreads int, sharedKeysPath string) ([]*Network, error) {
	network := make([]*Network, numThreads)

	if bindingIP == "" { // Set default
		bindingIP = "0.0.0.0"
	}

	// The first failing thread cancels ctx, which closes the listeners and
	// stops the dial retries of its siblings
	g, ctx := errgroup.WithContext(context.Background())
	for thread := range network {
		thread := thread
		g.Go(func() error {
			netObj, err := initNetworkForThread(ctx, bindingIP, servers, pid, nparties, thread)
			if err != nil {
				return errors.Wrapf(err, "thread %d", thread)
			}
			network[thread] = netObj
			log.Lvl2("Network for thread", thread, "complete")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ParallelNetworks(network).CloseAll()
		return nil, err
	}

	// update threads initialize using different outputs of the same seed
	if err := InitializeParallelPRG(sharedKeysPath, network, pid, nparties); err != nil {
		ParallelNetworks(network).CloseAll()
		return nil, err
	}

	return network, nil
}

func initNetworkForThread(ctx context.Context, bindingIP string, servers map[string]Server, pid int, nparties, thread int) (*Network, error) {
	netObj := newNetwork(pid, nparties)

	for other := 0; other < nparties; other++ {
		if other == pid {
			continue
		}

		if other < pid { // Act as a client
			ip := servers[pidString(other)].IpAddr
			if ip == servers[pidString(pid)].IpAddr { // If self, set to localhost
				ip = "127.0.0.1"
			}

			portInt, err := strconv.Atoi(servers[pidString(other)].Ports[pidString(pid)])
			if err != nil {
				netObj.CloseAll()
				return nil, errors.Wrapf(err, "port of %s for %s", pidString(other), pidString(pid))
			}

			// Need different port for each pair of thread between each pair of parties
			// Assumes that port info in config is given such that port + thread ID does not collide
			port := strconv.Itoa(portInt + thread)

			c, err := Connect(ctx, ip, port)
			if err != nil {
				netObj.CloseAll()
				return nil, err
			}
			netObj.conns[other] = c
			log.Lvl2("Connected to socket, listening to party", other)

		} else { // Act as a server
			portInt, err := strconv.Atoi(servers[pidString(pid)].Ports[pidString(other)])
			if err != nil {
				netObj.CloseAll()
				return nil, errors.Wrapf(err, "port of %s for %s", pidString(pid), pidString(other))
			}

			port := strconv.Itoa(portInt + thread)
			c, l, err := OpenChannel(ctx, bindingIP, port)
			if err != nil {
				netObj.CloseAll()
				return nil, err
			}
			netObj.conns[other] = c
			netObj.listeners[other] = l

			log.Lvl2("Check port: opened and listening to party", other)
		}
	}

	return netObj, nil
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// InitLocalCommunication connects nparties inside one process over
// loopback TCP, with numThreads channels per pair. The result is
// indexed by party, then thread. Pairwise PRG keys are the
// deterministic ones, so this is only meant for tests and demos.
func InitLocalCommunication(nparties, numThreads int) ([][]*Network, error) {
	nets := make([][]*Network, nparties)
	for pid := range nets {
		nets[pid] = make([]*Network, numThreads)
		for thread := range nets[pid] {
			nets[pid][thread] = newNetwork(pid, nparties)
		}
	}

	closeAll := func() {
		for pid := range nets {
			ParallelNetworks(nets[pid]).CloseAll()
		}
	}

	for thread := 0; thread < numThreads; thread++ {
		for a := 0; a < nparties; a++ {
			for b := a + 1; b < nparties; b++ {
				l, err := net.Listen("tcp", "127.0.0.1:0")
				if err != nil {
					closeAll()
					return nil, err
				}

				accepted := make(chan acceptResult, 1)
				go func() {
					c, err := l.Accept()
					accepted <- acceptResult{conn: c, err: err}
				}()

				dialed, err := net.Dial("tcp", l.Addr().String())
				if err != nil {
					l.Close()
					closeAll()
					return nil, err
				}
				res := <-accepted
				if res.err != nil {
					dialed.Close()
					l.Close()
					closeAll()
					return nil, res.err
				}

				// Lower pid acts as the server, as in initNetworkForThread
				nets[a][thread].conns[b] = res.conn
				nets[a][thread].listeners[b] = l
				nets[b][thread].conns[a] = dialed
			}
		}
	}

	for pid := range nets {
		if err := InitializeParallelPRG("", nets[pid], pid, nparties); err != nil {
			closeAll()
			return nil, err
		}
	}

	return nets, nil
}

/* Reading and writing from channel */

func WriteFull(conn net.Conn, buf []byte) error {
	shift := 0
	for shift < len(buf) {
		sent, err := conn.Write(buf[shift:])
		shift += sent
		if err != nil {
			return err
		}
	}
	return nil
}

func ReadFull(conn net.Conn, buf []byte) error {
	_, err := io.ReadFull(conn, buf)
	return err
}

// OpenChannel opens channel at specificed ip address and port and returns channel (server side, connection for client to listen to).
// Cancelling ctx closes the listener and aborts the accept.
func OpenChannel(ctx context.Context, ip, port string) (net.Conn, net.Listener, error) {
	addr := ":" + port
	if ip != "" {
		addr = ip + addr
	}
	log.Lvl2("Opening socket on:", addr)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listen %s", addr)
	}
	stop := context.AfterFunc(ctx, func() { l.Close() })
	conn, err := l.Accept()
	if !stop() {
		if conn != nil {
			conn.Close()
		}
		return nil, nil, errors.Wrapf(ctx.Err(), "accept %s", addr)
	}
	if err != nil {
		l.Close()
		return nil, nil, errors.Wrapf(err, "accept %s", addr)
	}
	log.Lvl2("Successfully opened channel at port", port)

	//return the channel specific to party pair
	return conn, l, nil
}

func (netObj *Network) CloseAll() {
	for _, c := range netObj.conns {
		c.Close()
	}
	for _, l := range netObj.listeners {
		l.Close()
	}
}

func (netObjs ParallelNetworks) CloseAll() {
	for i := range netObjs {
		if netObjs[i] != nil {
			netObjs[i].CloseAll()
		}
	}
}

// Connect to "server", given the ip address and port. Retries stop when
// ctx is cancelled.
func Connect(ctx context.Context, ip, port string) (net.Conn, error) {
	addr := ip + ":" + port

	var dialer net.Dialer
	var c net.Conn
	var err error
	for i := 0; i < ConnectRetries; i++ {
		c, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Lvl2("Successfully connected to", addr)
			return c, nil
		}

		log.LLvl1(fmt.Sprintf("Connection to %s failed: %v; retrying in %v", addr, err, ConnectRetryDelay))
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "connect %s", addr)
		case <-time.After(ConnectRetryDelay):
		}
	}

	return nil, errors.Wrapf(err, "connect %s", addr)
}

func (netObj *Network) GetPid() int {
	return netObj.pid
}

func (netObj *Network) SetHubPid(p int) {
	netObj.hubPid = p
}

func (netObj *Network) GetHubPid() int {
	return netObj.hubPid
}

func (netObj *Network) GetNParty() int {
	return netObj.NumParties
}
