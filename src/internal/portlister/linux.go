package portlister

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bemindlab/portscope/src/internal/types"
)

// Socket states as encoded in /proc/net/tcp and /proc/net/udp.
const (
	tcpStateListen = "0A"
	udpStateBound  = "07" // TCP_CLOSE; for UDP this means bound, not connected
)

// procfsLister enumerates sockets by parsing /proc/net/{tcp,tcp6,udp,udp6}
// and mapping socket inodes to pids through /proc/<pid>/fd.
type procfsLister struct {
	procRoot string
	resolver *processResolver
}

func newProcfsLister(resolver *processResolver) *procfsLister {
	return &procfsLister{procRoot: "/proc", resolver: resolver}
}

type socketRow struct {
	address string
	port    int
	inode   string
}

func (l *procfsLister) ListPorts(ctx context.Context) ([]types.RawPortRow, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	// /proc/net/tcp is the primary source; if it cannot be read the
	// query as a whole has failed.
	tcpFile := filepath.Join(l.procRoot, "net", "tcp")
	f, err := os.Open(tcpFile)
	if err != nil {
		return nil, types.NewOSQueryError("open "+tcpFile, err)
	}
	tcpSockets, err := parseProcNet(f, false, tcpStateListen)
	_ = f.Close()
	if err != nil {
		return nil, types.NewOSQueryError("parse "+tcpFile, err)
	}

	inodePIDs := l.socketInodePIDs()

	var rows []types.RawPortRow
	appendRows := func(sockets []socketRow, protocol types.Protocol) {
		for _, s := range sockets {
			row := types.RawPortRow{
				Port:     s.port,
				Protocol: protocol,
				Address:  s.address,
				PID:      inodePIDs[s.inode],
			}
			if protocol == types.ProtocolTCP {
				row.State = "LISTEN"
			}
			row.ProcessName, row.CommandLine = l.resolver.Resolve(row.PID)
			rows = append(rows, row)
		}
	}

	appendRows(tcpSockets, types.ProtocolTCP)

	// IPv6 and UDP tables may be absent (disabled stacks); their absence
	// is not an error.
	secondary := []struct {
		file     string
		ipv6     bool
		protocol types.Protocol
		state    string
	}{
		{"tcp6", true, types.ProtocolTCP, tcpStateListen},
		{"udp", false, types.ProtocolUDP, udpStateBound},
		{"udp6", true, types.ProtocolUDP, udpStateBound},
	}
	for _, src := range secondary {
		if ctx.Err() != nil {
			return nil, types.NewOSQueryError("procfs scan", ctx.Err())
		}

		f, err := os.Open(filepath.Join(l.procRoot, "net", src.file))
		if err != nil {
			continue
		}
		sockets, err := parseProcNet(f, src.ipv6, src.state)
		_ = f.Close()
		if err != nil {
			continue
		}
		appendRows(sockets, src.protocol)
	}

	return rows, nil
}

// parseProcNet reads one /proc/net table and returns the rows whose socket
// state matches wantState.
func parseProcNet(r io.Reader, ipv6 bool, wantState string) ([]socketRow, error) {
	var sockets []socketRow

	scanner := bufio.NewScanner(r)
	scanner.Scan() // skip header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}

		if fields[3] != wantState {
			continue
		}

		addr, port := parseProcNetAddr(fields[1], ipv6)
		if port == 0 {
			continue
		}

		sockets = append(sockets, socketRow{address: addr, port: port, inode: fields[9]})
	}

	return sockets, scanner.Err()
}

// parseProcNetAddr decodes the hex "ADDR:PORT" column of a /proc/net table.
func parseProcNetAddr(raw string, ipv6 bool) (string, int) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return "", 0
	}

	port, _ := strconv.ParseInt(parts[1], 16, 32)

	b, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", int(port)
	}

	if ipv6 {
		if len(b) != 16 {
			return "::", int(port)
		}
		// /proc/net/tcp6 stores IPv6 as four little-endian 32-bit groups.
		ip := make(net.IP, 16)
		for i := 0; i < 4; i++ {
			ip[i*4+0] = b[i*4+3]
			ip[i*4+1] = b[i*4+2]
			ip[i*4+2] = b[i*4+1]
			ip[i*4+3] = b[i*4+0]
		}
		return ip.String(), int(port)
	}

	if len(b) < 4 {
		return "", int(port)
	}
	ip := net.IPv4(b[3], b[2], b[1], b[0])
	return ip.String(), int(port)
}

// socketInodePIDs maps socket inodes to owning pids by walking
// /proc/<pid>/fd. Unreadable entries are skipped; a partial map is still
// useful (unresolved rows keep pid 0).
func (l *procfsLister) socketInodePIDs() map[string]int {
	inodeMap := make(map[string]int)

	entries, err := os.ReadDir(l.procRoot)
	if err != nil {
		return inodeMap
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join(l.procRoot, entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}

		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if strings.HasPrefix(link, "socket:[") && strings.HasSuffix(link, "]") {
				inode := link[len("socket:[") : len(link)-1]
				inodeMap[inode] = pid
			}
		}
	}

	return inodeMap
}
