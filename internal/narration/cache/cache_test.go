package cache

import (
	"fmt"
	"sync"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidlingo/internal/domain/narration"
)

func newTestStore(max int) *Store {
	log, _ := logtest.NewNullLogger()
	return NewStore(max, log)
}

func asset(id string) *narration.Asset {
	return &narration.Asset{ID: id, Payload: []byte(id)}
}

func TestNormalizer_KeyIncludesLanguageAndVoice(t *testing.T) {
	n := NewNormalizer("v1")

	en, err := n.Key(narration.Request{Text: "Hello!", LanguageHint: "en"})
	require.NoError(t, err)
	es, err := n.Key(narration.Request{Text: "Hello!", LanguageHint: "es"})
	require.NoError(t, err)
	voiced, err := n.Key(narration.Request{Text: "Hello!", LanguageHint: "en", VoiceID: "sam"})
	require.NoError(t, err)

	assert.NotEqual(t, en, es)
	assert.NotEqual(t, en, voiced)
	assert.NotEqual(t, en.String(), es.String())
}

func TestNormalizer_StableAcrossSpellings(t *testing.T) {
	n := NewNormalizer("v1")

	a, err := n.Key(narration.Request{Text: "  Hello!   I'm Teacher Sam. ", LanguageHint: "en-us", VoiceID: " sam "})
	require.NoError(t, err)
	b, err := n.Key(narration.Request{Text: "Hello! I'm Teacher Sam.", LanguageHint: "en_US", VoiceID: "sam"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "en-US", a.Language)
}

func TestNormalizer_ComposedAndDecomposedTextMatch(t *testing.T) {
	n := NewNormalizer("v1")

	composed, err := n.Key(narration.Request{Text: "Adi\u00f3s", LanguageHint: "es"})
	require.NoError(t, err)
	decomposed, err := n.Key(narration.Request{Text: "Adio\u0301s", LanguageHint: "es"})
	require.NoError(t, err)

	assert.Equal(t, composed, decomposed)
}

func TestNormalizer_VersionNamespacesKeys(t *testing.T) {
	req := narration.Request{Text: "Hi", LanguageHint: "en"}
	a, err := NewNormalizer("v1").Key(req)
	require.NoError(t, err)
	b, err := NewNormalizer("v2").Key(req)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNormalizer_RejectsInvalidRequests(t *testing.T) {
	n := NewNormalizer("v1")

	_, err := n.Key(narration.Request{Text: "", LanguageHint: "en"})
	assert.Equal(t, narration.KindValidation, narration.KindOf(err))

	_, err = n.Key(narration.Request{Text: "Hi", LanguageHint: "%%"})
	assert.Equal(t, narration.KindValidation, narration.KindOf(err))
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(0)
	key := Key{Version: "v1", Text: "Hi", Language: "en"}

	_, ok := s.Get(key)
	assert.False(t, ok)

	stored := s.Put(key, asset("a1"))
	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Same(t, stored, got)

	byID, ok := s.GetByID("a1")
	require.True(t, ok)
	assert.Same(t, stored, byID)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestStore_LastWriteWins(t *testing.T) {
	s := newTestStore(0)
	key := Key{Text: "Hi", Language: "en"}

	s.Put(key, asset("first"))
	s.Put(key, asset("second"))

	got, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "second", got.ID)
	assert.Equal(t, 1, s.Len())

	_, ok = s.GetByID("first")
	assert.False(t, ok)
}

func TestStore_UnboundedByDefault(t *testing.T) {
	s := newTestStore(0)
	for i := 0; i < 500; i++ {
		s.Put(Key{Text: fmt.Sprint(i), Language: "en"}, asset(fmt.Sprint(i)))
	}
	assert.Equal(t, 500, s.Len())
	assert.Zero(t, s.Stats().Evictions)
}

func TestStore_LRUEviction(t *testing.T) {
	s := newTestStore(2)
	k1 := Key{Text: "one", Language: "en"}
	k2 := Key{Text: "two", Language: "en"}
	k3 := Key{Text: "three", Language: "en"}

	s.Put(k1, asset("1"))
	s.Put(k2, asset("2"))
	_, _ = s.Get(k1) // k2 is now least recently used
	s.Put(k3, asset("3"))

	_, ok := s.Get(k2)
	assert.False(t, ok, "k2 should have been evicted")
	_, ok = s.Get(k1)
	assert.True(t, ok)
	_, ok = s.Get(k3)
	assert.True(t, ok)
	_, ok = s.GetByID("2")
	assert.False(t, ok)
	assert.EqualValues(t, 1, s.Stats().Evictions)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := Key{Text: fmt.Sprintf("%d-%d", n, j%20), Language: "en"}
				s.Put(key, asset(fmt.Sprintf("%d-%d-%d", n, j, j%20)))
				s.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 16)
}

func TestStore_PeekLeavesCountersAlone(t *testing.T) {
	s := newTestStore(0)
	key := Key{Version: "v1", Text: "Hi", Language: "en"}

	_, ok := s.Peek(key)
	assert.False(t, ok)

	s.Put(key, asset("a1"))
	got, ok := s.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "a1", got.ID)

	stats := s.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}
