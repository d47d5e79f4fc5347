package rules

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSnapshot(t *testing.T, version string) *Snapshot {
	t.Helper()
	l, err := NewLoader()
	require.NoError(t, err)

	doc := fmt.Sprintf("version: %q\nrules:\n  - id: r1\n    jurisdiction: global\n    predicate: 'true'\n    effect: ALLOW\n    citation: \"ref\"\n", version)
	snap, err := l.Load([]byte(doc))
	require.NoError(t, err)
	return snap
}

func TestCatalog_ReplaceRejectsDowngrade(t *testing.T) {
	cat, err := NewCatalog(loadSnapshot(t, "2.0.0"))
	require.NoError(t, err)

	err = cat.Replace(loadSnapshot(t, "1.9.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogInvalid)
	assert.Equal(t, "2.0.0", cat.Snapshot().Version().String())

	require.NoError(t, cat.Replace(loadSnapshot(t, "2.1.0")))
	assert.Equal(t, "2.1.0", cat.Snapshot().Version().String())
}

func TestCatalog_ConcurrentReadersSeeCompleteSnapshots(t *testing.T) {
	cat, err := NewCatalog(loadSnapshot(t, "1.0.0"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = cat.Replace(loadSnapshot(t, fmt.Sprintf("1.0.%d", i+1)))
		}
		close(stop)
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := cat.Snapshot()
				// A snapshot is always whole: version and rules both present.
				if snap.Version() == nil || snap.Len() != 1 {
					t.Error("observed partial snapshot")
					return
				}
			}
		}()
	}

	wg.Wait()
}
