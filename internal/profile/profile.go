// Package profile holds the fixed device, referral and forwarded-IP tables
// that each visit picks from.
package profile

import (
	"math/rand/v2"
	"sync"
)

// Device is a browser presentation: user agent plus viewport.
type Device struct {
	Name      string
	UserAgent string
	Width     int64
	Height    int64
}

// Referral is a named referer URL.
type Referral struct {
	Name string
	URL  string
}

var devices = []Device{
	{
		Name:      "android",
		UserAgent: "Mozilla/5.0 (Linux; Android 13; Pixel 7 Pro) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Width:     360,
		Height:    800,
	},
	{
		Name:      "ios",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
		Width:     375,
		Height:    812,
	},
	{
		Name:      "desktop",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Width:     1920,
		Height:    1080,
	},
}

var referrals = []Referral{
	{Name: "Google", URL: "https://www.google.com/"},
	{Name: "Mozilla", URL: "https://www.mozilla.org/"},
}

// Devices returns a copy of the device table.
func Devices() []Device {
	return append([]Device(nil), devices...)
}

// Referrals returns a copy of the referral table.
func Referrals() []Referral {
	return append([]Referral(nil), referrals...)
}

// LookupDevice finds a device by exact name.
func LookupDevice(name string) (Device, bool) {
	for _, d := range devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// LookupReferral finds a referral by exact name.
func LookupReferral(name string) (Referral, bool) {
	for _, r := range referrals {
		if r.Name == name {
			return r, true
		}
	}
	return Referral{}, false
}

// RandomDevice picks a device uniformly at random.
func RandomDevice() Device {
	return devices[rand.IntN(len(devices))]
}

// RandomReferral picks a referral uniformly at random.
func RandomReferral() Referral {
	return referrals[rand.IntN(len(referrals))]
}

// forwardedIPs are documentation and private-range addresses. They only
// ever appear in the X-Forwarded-For header.
var forwardedIPs = []string{
	"203.0.113.45", "198.51.100.12", "192.0.2.78", "172.16.0.5", "10.0.0.9",
	"203.0.113.10", "198.51.100.23", "192.0.2.34", "172.16.0.13", "10.0.0.21",
}

// IPRotator hands out forwarded IPs in a fixed cyclic order. The zero value
// rotates over the built-in list.
type IPRotator struct {
	mu   sync.Mutex
	ips  []string
	next int
}

// NewIPRotator creates a rotator over the built-in address list.
func NewIPRotator() *IPRotator {
	return &IPRotator{ips: append([]string(nil), forwardedIPs...)}
}

// Next returns the current address and advances the index.
func (r *IPRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ips) == 0 {
		r.ips = forwardedIPs
	}
	ip := r.ips[r.next]
	r.next = (r.next + 1) % len(r.ips)
	return ip
}

// Len reports how many addresses the rotator cycles through.
func (r *IPRotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ips) == 0 {
		return len(forwardedIPs)
	}
	return len(r.ips)
}
