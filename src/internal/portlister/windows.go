package portlister

import (
	"context"
	"strconv"
	"strings"

	"github.com/bemindlab/portscope/src/internal/types"
)

// netstatLister enumerates sockets on Windows by parsing `netstat -ano`.
type netstatLister struct {
	resolver *processResolver
	run      func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func newNetstatLister(resolver *processResolver) *netstatLister {
	return &netstatLister{resolver: resolver, run: runCommand}
}

func (l *netstatLister) ListPorts(ctx context.Context) ([]types.RawPortRow, error) {
	out, err := l.run(ctx, "netstat", "-ano")
	if err != nil {
		return nil, types.NewOSQueryError("netstat -ano", err)
	}

	rows := l.parseNetstatOutput(string(out))
	return rows, nil
}

// parseNetstatOutput parses netstat -ano rows:
//
//	TCP    0.0.0.0:135     0.0.0.0:0   LISTENING   888
//	UDP    0.0.0.0:5353    *:*                     1044
func (l *netstatLister) parseNetstatOutput(out string) []types.RawPortRow {
	var rows []types.RawPortRow

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		var protocol types.Protocol
		var state, pidField string

		switch fields[0] {
		case "TCP":
			if len(fields) < 5 || fields[3] != "LISTENING" {
				continue
			}
			protocol = types.ProtocolTCP
			state = "LISTEN"
			pidField = fields[4]
		case "UDP":
			protocol = types.ProtocolUDP
			pidField = fields[3]
		default:
			continue
		}

		addr, port := splitHostPort(fields[1])
		if port == 0 {
			continue
		}
		pid, _ := strconv.Atoi(pidField)

		row := types.RawPortRow{
			Port:     port,
			Protocol: protocol,
			Address:  addr,
			State:    state,
			PID:      pid,
		}
		row.ProcessName, row.CommandLine = l.resolver.Resolve(pid)
		rows = append(rows, row)
	}

	return rows
}

// splitHostPort splits "0.0.0.0:135" or "[::]:135" on the last colon.
func splitHostPort(addr string) (string, int) {
	idx := strings.LastIndexByte(addr, ':')
	if idx == -1 || idx == len(addr)-1 {
		return addr, 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return addr, 0
	}
	return strings.Trim(addr[:idx], "[]"), port
}
