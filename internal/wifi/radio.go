// Package wifi is the Linux side of network association: it asks the
// system's connection manager to join a network and then watches the
// interface until it carries a routable address.
package wifi

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultWirelessPath is where the kernel reports per-interface signal
// levels.
const DefaultWirelessPath = "/proc/net/wireless"

// Config selects the interface and the command used to join a network.
type Config struct {
	Interface string
	// ConnectCommand is run by BeginAssociation. $SSID, $PASSPHRASE and
	// $INTERFACE in any argument are replaced before the command runs.
	// An empty command leaves association to the system.
	ConnectCommand []string
	// CommandTimeout bounds ConnectCommand (default 30s).
	CommandTimeout time.Duration
	// WirelessPath overrides DefaultWirelessPath.
	WirelessPath string
}

// Radio reports association state for one network interface.
type Radio struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Radio for cfg.Interface.
func New(cfg Config, logger *slog.Logger) *Radio {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 30 * time.Second
	}
	if cfg.WirelessPath == "" {
		cfg.WirelessPath = DefaultWirelessPath
	}
	return &Radio{cfg: cfg, logger: logger}
}

// BeginAssociation starts joining ssid. It returns once the connect
// command has exited; whether the link came up is reported by
// [Radio.Associated].
func (r *Radio) BeginAssociation(ssid, passphrase string) error {
	if len(r.cfg.ConnectCommand) == 0 {
		r.logger.Debug("no connect command configured, waiting for the system to associate",
			"interface", r.cfg.Interface)
		return nil
	}

	args := expandCommand(r.cfg.ConnectCommand, map[string]string{
		"SSID":       ssid,
		"PASSPHRASE": passphrase,
		"INTERFACE":  r.cfg.Interface,
	})

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CommandTimeout)
	defer cancel()

	r.logger.Debug("running connect command", "command", args[0], "ssid", ssid)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		errOutput := strings.TrimSpace(stderr.String())
		if len(errOutput) > 200 {
			errOutput = errOutput[:200]
		}
		return fmt.Errorf("connect command: %w: %s", err, errOutput)
	}
	return nil
}

// Associated reports whether the interface is up with a global unicast
// address.
func (r *Radio) Associated() bool {
	return r.LocalAddress() != ""
}

// LocalAddress returns the interface's address, preferring IPv4, or ""
// when it has none.
func (r *Radio) LocalAddress() string {
	iface, err := net.InterfaceByName(r.cfg.Interface)
	if err != nil || iface.Flags&net.FlagUp == 0 {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	return pickAddress(addrs)
}

// MACAddress returns the interface's hardware address.
func (r *Radio) MACAddress() string {
	iface, err := net.InterfaceByName(r.cfg.Interface)
	if err != nil {
		return ""
	}
	return iface.HardwareAddr.String()
}

// SignalStrength returns the signal level in dBm.
func (r *Radio) SignalStrength() (int, error) {
	f, err := os.Open(r.cfg.WirelessPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", r.cfg.WirelessPath, err)
	}
	defer f.Close()
	return parseWireless(f, r.cfg.Interface)
}

// expandCommand substitutes vars into each argument. Unknown references
// such as $1 are kept so shell snippets survive.
func expandCommand(command []string, vars map[string]string) []string {
	out := make([]string, len(command))
	for i, arg := range command {
		out[i] = os.Expand(arg, func(name string) string {
			if v, ok := vars[name]; ok {
				return v
			}
			return "$" + name
		})
	}
	return out
}

func pickAddress(addrs []net.Addr) string {
	var v6 string
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || !ipnet.IP.IsGlobalUnicast() {
			continue
		}
		if ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
		if v6 == "" {
			v6 = ipnet.IP.String()
		}
	}
	return v6
}

var errNoInterface = errors.New("interface not listed")

// parseWireless reads the signal level column of /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets ...
//	 face | tus | link level noise |  nwid  crypt ...
//	 wlan0: 0000   54.  -56.  -256        0 ...
func parseWireless(r io.Reader, iface string) (int, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		name, rest, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("short wireless line for %s", iface)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("parse signal level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%s: %w", iface, errNoInterface)
}
