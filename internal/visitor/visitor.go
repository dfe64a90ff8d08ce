// Package visitor runs a single page visit: launch a browser, apply a
// device profile and spoofed headers, load the target, dwell, close.
package visitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ibeckermayer/visitbatch/internal/browser"
	"github.com/ibeckermayer/visitbatch/internal/profile"
)

var (
	ErrUnknownDevice   = errors.New("unknown device")
	ErrUnknownReferral = errors.New("unknown referral")
)

// Session is one open browser tab.
type Session interface {
	SetUserAgent(userAgent string) error
	SetViewport(width, height int64) error
	SetExtraHeaders(headers map[string]string) error
	Navigate(url string) error
	Close() error
}

// Launcher opens isolated browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// ChromeLauncher adapts browser.Launcher to the Launcher interface.
func ChromeLauncher(l *browser.Launcher) Launcher {
	return chromeLauncher{l: l}
}

type chromeLauncher struct {
	l *browser.Launcher
}

func (c chromeLauncher) Launch(ctx context.Context) (Session, error) {
	s, err := c.l.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Params describes one visit. Empty Referral or Device means pick at random.
type Params struct {
	URL      string
	Dwell    time.Duration
	Referral string
	Device   string
}

// Result reports what a visit actually used.
type Result struct {
	Device   string
	Referral string
	IP       string
	Started  time.Time
	Finished time.Time
}

// Visitor performs visits with a shared forwarded-IP rotation.
type Visitor struct {
	launcher Launcher
	ips      *profile.IPRotator

	// Sleep waits for the dwell time. Replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a visitor. The rotator is shared by every visit the process
// makes so the address sequence continues across batches.
func New(launcher Launcher, ips *profile.IPRotator) *Visitor {
	return &Visitor{
		launcher: launcher,
		ips:      ips,
		Sleep:    Wait,
	}
}

// Resolve fills in random defaults and validates named choices.
func Resolve(p Params) (profile.Device, profile.Referral, error) {
	var (
		device   profile.Device
		referral profile.Referral
		ok       bool
	)

	if p.Device == "" {
		device = profile.RandomDevice()
	} else if device, ok = profile.LookupDevice(p.Device); !ok {
		return device, referral, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDevice, p.Device, deviceNames())
	}

	if p.Referral == "" {
		referral = profile.RandomReferral()
	} else if referral, ok = profile.LookupReferral(p.Referral); !ok {
		return device, referral, fmt.Errorf("%w: %q (known: %s)", ErrUnknownReferral, p.Referral, referralNames())
	}

	return device, referral, nil
}

// Visit opens the target in a new browser and keeps it open for p.Dwell.
// The session is always closed, including when navigation fails.
func (v *Visitor) Visit(ctx context.Context, p Params) (res Result, err error) {
	device, referral, err := Resolve(p)
	if err != nil {
		return res, err
	}

	res = Result{
		Device:   device.Name,
		Referral: referral.Name,
		Started:  time.Now(),
	}

	sess, err := v.launcher.Launch(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		res.Finished = time.Now()
		cerr := sess.Close()
		switch {
		case cerr != nil && err == nil:
			err = fmt.Errorf("failed to close browser: %w", cerr)
		case cerr == nil && err == nil:
			log.Printf("[visitor] Closed browser after %gs", p.Dwell.Seconds())
		}
	}()

	if err := sess.SetUserAgent(device.UserAgent); err != nil {
		return res, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := sess.SetViewport(device.Width, device.Height); err != nil {
		return res, fmt.Errorf("failed to set viewport: %w", err)
	}

	res.IP = v.ips.Next()
	if err := sess.SetExtraHeaders(map[string]string{
		"Referer":         referral.URL,
		"X-Forwarded-For": res.IP,
	}); err != nil {
		return res, fmt.Errorf("failed to set headers: %w", err)
	}

	if err := sess.Navigate(p.URL); err != nil {
		return res, fmt.Errorf("failed to open %s: %w", p.URL, err)
	}
	log.Printf("[visitor] Opened %s (referred by %s, IP: %s, device: %s)", p.URL, referral.Name, res.IP, device.Name)

	if err := v.Sleep(ctx, p.Dwell); err != nil {
		return res, err
	}

	return res, nil
}

func deviceNames() string {
	var names []string
	for _, d := range profile.Devices() {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}

func referralNames() string {
	var names []string
	for _, r := range profile.Referrals() {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
