package discovery

import (
	"strings"
	"unicode"

	"github.com/monorkin/home-network-monitor/appliance/api"
)

type Category string

const (
	CategoryComputer Category = "computer"
	CategoryMobile   Category = "mobile"
	CategoryIoT      Category = "iot"
	CategoryNetwork  Category = "network"
	CategoryUnknown  Category = "unknown"
)

// Categories in display order, which is also the matching priority.
var Categories = []Category{CategoryComputer, CategoryMobile, CategoryIoT, CategoryNetwork, CategoryUnknown}

func ParseCategory(value string) (Category, bool) {
	for _, category := range Categories {
		if strings.EqualFold(string(category), value) {
			return category, true
		}
	}
	return "", false
}

func (category Category) Title() string {
	switch category {
	case CategoryComputer:
		return "Computers & servers"
	case CategoryMobile:
		return "Phones & tablets"
	case CategoryIoT:
		return "IoT & smart home"
	case CategoryNetwork:
		return "Network equipment"
	default:
		return "Unknown devices"
	}
}

func (category Category) Icon() string {
	switch category {
	case CategoryComputer:
		return "💻"
	case CategoryMobile:
		return "📱"
	case CategoryIoT:
		return "🏠"
	case CategoryNetwork:
		return "🌐"
	default:
		return "❓"
	}
}

var (
	computerTypeTokens = []string{"pc", "linux", "server", "serveur", "windows"}
	computerOSTokens   = []string{"linux", "windows"}

	mobileTypeTokens   = []string{"iphone", "mobile"}
	mobileVendorTokens = []string{"apple", "samsung"}
	mobileOSTokens     = []string{"ios", "android"}

	iotVendorTokens = []string{"dyson", "esp", "tuya", "shelly", "sonoff", "philips", "xiaomi", "nest", "ring"}
	iotTypeTokens   = []string{"iot", "smart"}

	networkVendorTokens = []string{"freebox", "livebox", "netgear", "tp-link", "ubiquiti", "mikrotik", "cisco"}
	networkTypeTokens   = []string{"router", "routeur", "gateway", "switch", "access point"}
)

// Categorize assigns exactly one category to host. Rules are tried in priority order
// computer, mobile, IoT, network; anything else is unknown.
func Categorize(host api.DiscoveredHost) Category {
	deviceType := strings.ToLower(host.DeviceType)
	vendor := vendorWords(host.Vendor)
	os := strings.ToLower(host.OSDetected)

	switch {
	case containsAny(deviceType, computerTypeTokens) || containsAny(os, computerOSTokens):
		return CategoryComputer
	case containsAny(deviceType, mobileTypeTokens) || vendor.startsWithAny(mobileVendorTokens) || containsAny(os, mobileOSTokens):
		return CategoryMobile
	case vendor.startsWithAny(iotVendorTokens) || containsAny(deviceType, iotTypeTokens):
		return CategoryIoT
	case vendor.startsWithAny(networkVendorTokens) || containsAny(deviceType, networkTypeTokens):
		return CategoryNetwork
	default:
		return CategoryUnknown
	}
}

// DisplayTitle picks the hostname, then the vendor, then the IP.
func DisplayTitle(host api.DiscoveredHost) string {
	hostname := strings.TrimSpace(host.Hostname)
	if hostname != "" && !strings.EqualFold(hostname, "N/A") {
		return hostname
	}
	vendor := strings.TrimSpace(host.Vendor)
	if vendor != "" && !strings.EqualFold(vendor, "Unknown") && !strings.EqualFold(vendor, "Inconnu") {
		return vendor
	}
	return host.IP
}

// deviceTypeTable maps tokens of the scanner's free-form device_type onto the catalog
// vocabulary. The first matching row wins.
var deviceTypeTable = []struct {
	tokens     []string
	deviceType api.DeviceType
}{
	{[]string{"server", "serveur", "nas"}, api.DeviceTypeServer},
	{[]string{"pc", "computer", "ordinateur", "laptop", "desktop", "linux", "windows", "mac"}, api.DeviceTypeComputer},
	{[]string{"tablet", "tablette", "ipad"}, api.DeviceTypeTablet},
	{[]string{"phone", "mobile", "iphone", "android", "smartphone"}, api.DeviceTypePhone},
	{[]string{"printer", "imprimante"}, api.DeviceTypePrinter},
	{[]string{"tv", "television", "chromecast", "media"}, api.DeviceTypeTV},
	{[]string{"console", "playstation", "xbox", "nintendo"}, api.DeviceTypeConsole},
	{[]string{"router", "routeur", "gateway", "switch", "access point", "network", "freebox", "livebox"}, api.DeviceTypeNetwork},
	{[]string{"iot", "smart", "camera", "sensor", "plug", "bulb"}, api.DeviceTypeIoT},
}

// MapDeviceType translates a free-form scanner type to the catalog vocabulary,
// falling back to "other".
func MapDeviceType(freeForm string) api.DeviceType {
	value := strings.ToLower(strings.TrimSpace(freeForm))
	if value == "" {
		return api.DeviceTypeOther
	}
	if deviceType, ok := api.ParseDeviceType(value); ok {
		return deviceType
	}
	for _, row := range deviceTypeTable {
		if containsAny(value, row.tokens) {
			return row.deviceType
		}
	}
	return api.DeviceTypeOther
}

// vendorWords splits a vendor name into lowercase words. Hyphens stay inside a word
// so that "TP-Link" remains one.
type vendorWords string

func (vendor vendorWords) words() []string {
	return strings.FieldsFunc(strings.ToLower(string(vendor)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// startsWithAny reports whether a word of the vendor begins with one of tokens, so
// "esp" finds "Espressif" and "ring" does not find "Manufacturing".
func (vendor vendorWords) startsWithAny(tokens []string) bool {
	for _, word := range vendor.words() {
		for _, token := range tokens {
			if strings.HasPrefix(word, token) {
				return true
			}
		}
	}
	return false
}

func containsAny(value string, tokens []string) bool {
	if value == "" {
		return false
	}
	for _, token := range tokens {
		if strings.Contains(value, token) {
			return true
		}
	}
	return false
}
