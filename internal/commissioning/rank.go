package commissioning

import (
	"sort"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Rank orders networks by descending signal, keeps the strongest entry
// per SSID and caps the list at MaxNetworks. The result is never nil.
func Rank(nets []schema.Network) []schema.Network {
	best := make(map[string]int, len(nets))
	out := make([]schema.Network, 0, len(nets))
	for _, n := range nets {
		if n.SSID == "" {
			continue
		}
		if i, ok := best[n.SSID]; ok {
			if n.RSSI > out[i].RSSI {
				out[i] = n
			}
			continue
		}
		best[n.SSID] = len(out)
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	if len(out) > MaxNetworks {
		out = out[:MaxNetworks]
	}
	return out
}
