package dashboard

import (
	"sort"
	"strings"

	"github.com/seancfoley/ipaddress-go/ipaddr"
)

func parseIP(value string) *ipaddr.IPAddress {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return ipaddr.NewIPAddressString(value).GetAddress()
}

// CompareIP orders addresses numerically with IPv4 before IPv6. Values that are not
// addresses sort last, alphabetically.
func CompareIP(a, b string) int {
	addrA, addrB := parseIP(a), parseIP(b)
	switch {
	case addrA == nil && addrB == nil:
		return strings.Compare(a, b)
	case addrA == nil:
		return 1
	case addrB == nil:
		return -1
	}

	if addrA.IsIPv4() != addrB.IsIPv4() {
		if addrA.IsIPv4() {
			return -1
		}
		return 1
	}
	return addrA.Compare(addrB)
}

// SortIPs returns a sorted copy of addresses.
func SortIPs(addresses []string) []string {
	sorted := append([]string(nil), addresses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareIP(sorted[i], sorted[j]) < 0
	})
	return sorted
}

func IsIPAddress(value string) bool {
	return parseIP(value) != nil
}
