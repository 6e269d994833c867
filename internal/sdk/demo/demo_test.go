package demo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

// eventLog is an sdk.Listener recording event names
type eventLog struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (l *eventLog) add(name string) {
	l.mu.Lock()
	l.events = append(l.events, name)
	l.mu.Unlock()
}

func (l *eventLog) names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) OnRendered() { l.add("rendered") }
func (l *eventLog) OnImpressionFinished() { l.add("impression_finished") }
func (l *eventLog) OnImpressionFailed() { l.add("impression_failed") }
func (l *eventLog) OnImpressionReceivedError(int, string) { l.add("impression_error") }
func (l *eventLog) OnLoaded() { l.add("loaded") }
func (l *eventLog) OnOpened() { l.add("opened") }
func (l *eventLog) OnClicked() { l.add("clicked") }
func (l *eventLog) OnLeftApplication() { l.add("left_application") }
func (l *eventLog) OnClosed() { l.add("closed") }

func (l *eventLog) OnFailedToLoad(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	l.add("failed_to_load")
}

func TestInit(t *testing.T) {
	s := New(Config{Seed: 1})
	if err := s.Init(context.Background(), sdk.Environment{AppID: "app"}); err != nil {
		t.Fatalf("Expected init to succeed, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Init(ctx, sdk.Environment{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if s.Version() != Version {
		t.Errorf("Expected version %s, got %s", Version, s.Version())
	}
}

func TestController_FillAndShow(t *testing.T) {
	s := New(Config{FillRate: 1, ClickRate: 1, Seed: 1})
	l := &eventLog{}
	c := s.NewController("placement", sdk.KindInterstitial)
	c.SetListener(l)

	c.Load()
	s.Wait()
	c.Show()
	s.Wait()

	expected := []string{"loaded", "opened", "rendered", "impression_finished", "clicked", "left_application", "closed"}
	got := l.names()
	if len(got) != len(expected) {
		t.Fatalf("Expected events %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected event %d to be %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestController_NoFill(t *testing.T) {
	s := New(Config{FillRate: 0, Seed: 1})
	l := &eventLog{}
	c := s.NewController("placement", sdk.KindSplash)
	c.SetListener(l)

	c.Load()
	s.Wait()

	var loadErr *sdk.LoadError
	if !errors.As(l.err, &loadErr) {
		t.Fatalf("Expected *sdk.LoadError, got %v", l.err)
	}
	if loadErr.Code != sdk.CodeNoFill {
		t.Errorf("Expected code %d, got %d", sdk.CodeNoFill, loadErr.Code)
	}
}

func TestController_ShowTwiceConsumesAd(t *testing.T) {
	s := New(Config{FillRate: 1, Seed: 1})
	l := &eventLog{}
	c := s.NewController("placement", sdk.KindInterstitial)
	c.SetListener(l)

	c.Load()
	s.Wait()
	c.Show()
	s.Wait()
	c.Show()
	s.Wait()

	names := l.names()
	if names[len(names)-1] != "impression_failed" {
		t.Errorf("Expected second show to fail, got %v", names)
	}
}

func TestView_EmptyPlacementFails(t *testing.T) {
	s := New(Config{FillRate: 1, Seed: 1})
	l := &eventLog{}
	v := s.NewView(sdk.Environment{})
	v.SetListener(l)

	v.Load("", false)
	s.Wait()

	var loadErr *sdk.LoadError
	if !errors.As(l.err, &loadErr) || loadErr.Code != sdk.CodeNotFound {
		t.Errorf("Expected 404 load error, got %v", l.err)
	}
}

func TestView_AutoShow(t *testing.T) {
	s := New(Config{FillRate: 1, Seed: 1})
	l := &eventLog{}
	v := s.NewView(sdk.Environment{})
	v.SetListener(l)

	v.Load("banner", true)
	s.Wait()

	names := l.names()
	if len(names) != 3 || names[0] != "loaded" || names[2] != "impression_finished" {
		t.Errorf("Expected loaded then impression, got %v", names)
	}
}

func TestDestroyedObjectsAreSilent(t *testing.T) {
	s := New(Config{FillRate: 1, Seed: 1})
	l := &eventLog{}
	v := s.NewView(sdk.Environment{})
	v.SetListener(l)

	v.Destroy()
	v.Load("banner", false)
	s.Wait()

	if len(l.names()) != 0 {
		t.Errorf("Expected no events after destroy, got %v", l.names())
	}
}

func TestSetPrivacy(t *testing.T) {
	s := New(Config{Seed: 1})
	p := sdk.Privacy{GDPR: sdk.PrivacyAuthorized}
	s.SetPrivacy(p)
	if s.Privacy() != p {
		t.Errorf("Expected privacy %+v, got %+v", p, s.Privacy())
	}
}
