package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pluginmanifest/registry/internal/gitstore"
)

type fakePuller struct {
	update gitstore.Update
	err    error
	pulls  int
}

func (f *fakePuller) PullWithRetry(ctx context.Context, maxRetries int) (gitstore.Update, error) {
	f.pulls++
	return f.update, f.err
}

type fakeRefresher struct {
	err     error
	changed [][]string
}

func (f *fakeRefresher) Refresh(changed []string) error {
	f.changed = append(f.changed, changed)
	return f.err
}

func (f *fakeRefresher) PluginCount() int { return 3 }

var moved = gitstore.Update{OldCommit: "aaa", NewCommit: "bbb", Files: []string{"plugins/core.json"}}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, 5*time.Minute, m.pollInterval)
	assert.Equal(t, 10*time.Second, m.debounce)
	assert.NotNil(t, m.logger)
}

func TestDoSync(t *testing.T) {
	tests := []struct {
		name       string
		puller     *fakePuller
		refresher  *fakeRefresher
		refreshed  [][]string
		wantCommit string
		wantError  string
	}{
		{
			name:       "changed",
			puller:     &fakePuller{update: moved},
			refresher:  &fakeRefresher{},
			refreshed:  [][]string{{"plugins/core.json"}},
			wantCommit: "bbb",
		},
		{
			name:       "unchanged",
			puller:     &fakePuller{update: gitstore.Update{OldCommit: "aaa", NewCommit: "aaa"}},
			refresher:  &fakeRefresher{},
			wantCommit: "aaa",
		},
		{
			name:      "pull fails",
			puller:    &fakePuller{err: errors.New("network down")},
			refresher: &fakeRefresher{},
			wantError: "network down",
		},
		{
			name:      "refresh fails",
			puller:    &fakePuller{update: moved},
			refresher: &fakeRefresher{err: errors.New("bad index")},
			refreshed: [][]string{{"plugins/core.json"}},
			wantError: "bad index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Config{Store: tt.puller, Registry: tt.refresher})
			m.doSync(context.Background(), "test")

			status := m.Status()
			assert.Equal(t, 1, tt.puller.pulls)
			assert.Equal(t, tt.refreshed, tt.refresher.changed)
			assert.Equal(t, tt.wantCommit, status.LastCommit)
			assert.Equal(t, tt.wantError, status.LastError)
			assert.Equal(t, tt.wantError == "", !status.LastSync.IsZero())
			assert.False(t, status.Syncing)
		})
	}
}

func TestDoSync_ErrorClearsOnSuccess(t *testing.T) {
	puller := &fakePuller{err: errors.New("network down")}
	m := NewManager(Config{Store: puller, Registry: &fakeRefresher{}})

	m.doSync(context.Background(), "test")
	assert.NotEmpty(t, m.Status().LastError)

	puller.err = nil
	puller.update = moved
	m.doSync(context.Background(), "test")
	assert.Empty(t, m.Status().LastError)
	assert.Equal(t, "bbb", m.Status().LastCommit)
}

func TestDoSync_SkipsWhileRunning(t *testing.T) {
	puller := &fakePuller{update: moved}
	m := NewManager(Config{Store: puller, Registry: &fakeRefresher{}})

	assert.True(t, m.begin())
	m.doSync(context.Background(), "test")
	assert.Zero(t, puller.pulls)
}

func TestDebounced(t *testing.T) {
	m := NewManager(Config{Store: &fakePuller{update: moved}, Registry: &fakeRefresher{}, Debounce: time.Hour})

	assert.False(t, m.debounced())
	m.doSync(context.Background(), "test")
	assert.True(t, m.debounced())
}

func TestTrigger_Coalesces(t *testing.T) {
	m := NewManager(Config{Store: &fakePuller{}, Registry: &fakeRefresher{}})
	m.Trigger()
	m.Trigger()
	assert.Len(t, m.triggerChan, 1)
}

func TestStart_StopsOnCancel(t *testing.T) {
	m := NewManager(Config{Store: &fakePuller{}, Registry: &fakeRefresher{}, PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
}
