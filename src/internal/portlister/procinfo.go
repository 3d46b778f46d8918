package portlister

import (
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v4/process"
)

const (
	processCacheTTL     = 30 * time.Second
	processCacheCleanup = time.Minute
)

type processMeta struct {
	name    string
	cmdline string
}

// processResolver maps a pid to its short name and full command line.
// Lookups go through gopsutil and are cached briefly so that repeated
// polls do not re-read the process table for every row.
type processResolver struct {
	cache *gocache.Cache

	// lookup can be overridden in tests to avoid touching the real
	// process table.
	lookup func(pid int) (string, string)
}

func newProcessResolver() *processResolver {
	r := &processResolver{
		cache: gocache.New(processCacheTTL, processCacheCleanup),
	}
	r.lookup = psLookup
	return r
}

// Resolve returns the process name and command line for a pid, or empty
// strings when the process cannot be inspected (exited, permission denied).
func (r *processResolver) Resolve(pid int) (string, string) {
	if pid <= 0 {
		return "", ""
	}

	key := strconv.Itoa(pid)
	if cached, found := r.cache.Get(key); found {
		meta := cached.(processMeta)
		return meta.name, meta.cmdline
	}

	name, cmdline := r.lookup(pid)
	r.cache.Set(key, processMeta{name: name, cmdline: cmdline}, gocache.DefaultExpiration)
	return name, cmdline
}

func psLookup(pid int) (string, string) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", ""
	}

	name, err := p.Name()
	if err != nil {
		name = ""
	}
	cmdline, err := p.Cmdline()
	if err != nil {
		cmdline = ""
	}

	// Some platforms report the name with a path prefix.
	if idx := strings.LastIndexByte(name, '/'); idx != -1 {
		name = name[idx+1:]
	}

	return name, cmdline
}
