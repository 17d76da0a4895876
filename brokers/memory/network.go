package memory

import "sync"

var network = struct {
	sync.Mutex
	servers map[string]*Server
}{servers: make(map[string]*Server)}

// Dial returns the connected server listening on addr, starting one with
// default options if there is none. Servers outlive their callers so a
// producer and an inspecting pool can share one.
func Dial(addr string) *Server {
	network.Lock()
	defer network.Unlock()

	if s, ok := network.servers[addr]; ok {
		return s
	}

	options := DefaultOptions()
	options.Name = addr
	s := NewServer(options)
	s.connected = true
	network.servers[addr] = s
	return s
}

// Hangup discards the server listening on addr
func Hangup(addr string) {
	network.Lock()
	defer network.Unlock()

	delete(network.servers, addr)
}
